package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	clientIDKey   contextKey = "client_id"
	providerKey   contextKey = "provider"
	shipmentIDKey contextKey = "shipment_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID tags ctx with the HTTP request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithClient tags ctx with the client a job or request works for.
func WithClient(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// WithProvider tags ctx with the integrated platform being called.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// WithShipment tags ctx with the shipment being worked on.
func WithShipment(ctx context.Context, shipmentID string) context.Context {
	return context.WithValue(ctx, shipmentIDKey, shipmentID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Fields returns the correlation fields carried by ctx: trace and span ids
// of the active span plus any request, client, provider or shipment tag.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	for _, key := range []contextKey{requestIDKey, clientIDKey, providerKey, shipmentIDKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return fields
}

// L returns the context logger, falling back to base when ctx carries none,
// enriched with the correlation fields of ctx.
// Usage: logger.L(ctx, s.logger).Info("message", zap.String("key", "value"))
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	l, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		l = base
	}
	if l == nil {
		l = zap.NewNop()
	}
	if fields := Fields(ctx); len(fields) > 0 {
		return l.With(fields...)
	}
	return l
}
