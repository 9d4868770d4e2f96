package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns the attached logger", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		ctx := WithContext(context.Background(), zap.New(core))

		FromContext(ctx).Info("hello")
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("falls back to a no-op logger", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.NotPanics(t, func() { l.Info("dropped") })
	})
}

func TestFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Fields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClient(ctx, "C1")
	ctx = WithProvider(ctx, "tiendanube")
	ctx = WithShipment(ctx, "shp-9")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	got := map[string]string{}
	for _, f := range Fields(ctx) {
		got[f.Key] = f.String
	}
	assert.Equal(t, map[string]string{
		"trace_id":    "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":     "00f067aa0ba902b7",
		"request_id":  "req-1",
		"client_id":   "C1",
		"provider":    "tiendanube",
		"shipment_id": "shp-9",
	}, got)
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestL(t *testing.T) {
	t.Run("enriches the base logger", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		ctx := WithClient(context.Background(), "C1")

		L(ctx, zap.New(core)).Info("sync started")

		entries := recorded.FilterField(zap.String("client_id", "C1")).All()
		require.Len(t, entries, 1)
		assert.Equal(t, "sync started", entries[0].Message)
	})

	t.Run("prefers the context logger", func(t *testing.T) {
		baseCore, baseLogs := observer.New(zapcore.InfoLevel)
		ctxCore, ctxLogs := observer.New(zapcore.InfoLevel)
		ctx := WithContext(context.Background(), zap.New(ctxCore))

		L(ctx, zap.New(baseCore)).Info("routed")

		assert.Equal(t, 0, baseLogs.Len())
		assert.Equal(t, 1, ctxLogs.Len())
	})

	t.Run("nil base is safe", func(t *testing.T) {
		assert.NotPanics(t, func() { L(context.Background(), nil).Info("nothing") })
	})
}
