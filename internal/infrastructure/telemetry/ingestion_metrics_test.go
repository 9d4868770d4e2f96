package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestIngestionMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewIngestionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordIngest(ctx, "tiendanube", OutcomeCreated)
	m.RecordIngest(ctx, "tiendanube", OutcomeCreated)
	m.RecordIngest(ctx, "tiendanube", OutcomeExisting)
	m.RecordSyncFailure(ctx, "vtex", "list")
	m.RecordTokenRefresh(ctx, "mercadolibre", nil)
	m.RecordTokenRefresh(ctx, "mercadolibre", errors.New("invalid_grant"))
	m.RecordStatusUpdate(ctx, "mercadolibre", "DELIVERED")
	m.RecordJob(ctx, "status-sync", 3*time.Second, nil)

	data := collect(t, reader)

	ingested := data["tms_shipments_ingested_total"]
	assert.Equal(t, int64(2), sumFor(t, ingested, AttrProvider.String("tiendanube"), AttrOutcome.String(OutcomeCreated)))
	assert.Equal(t, int64(1), sumFor(t, ingested, AttrProvider.String("tiendanube"), AttrOutcome.String(OutcomeExisting)))

	assert.Equal(t, int64(1), sumFor(t, data["tms_provider_sync_failures_total"],
		AttrProvider.String("vtex"), AttrStage.String("list")))

	refresh := data["tms_token_refresh_total"]
	assert.Equal(t, int64(1), sumFor(t, refresh, AttrProvider.String("mercadolibre"), AttrResult.String("ok")))
	assert.Equal(t, int64(1), sumFor(t, refresh, AttrProvider.String("mercadolibre"), AttrResult.String("error")))

	assert.Equal(t, int64(1), sumFor(t, data["tms_status_sync_updates_total"],
		AttrProvider.String("mercadolibre"), AttrStatus.String("DELIVERED")))

	hist, ok := data["tms_scheduler_job_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 3.0, hist.DataPoints[0].Sum, 0.001)
}

func TestIngestionMetrics_NilIsNoop(t *testing.T) {
	var m *IngestionMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordIngest(ctx, "shopify", OutcomeSkipped)
		m.RecordSyncFailure(ctx, "shopify", "fetch")
		m.RecordTokenRefresh(ctx, "shopify", nil)
		m.RecordStatusUpdate(ctx, "shopify", "COLLECTED")
		m.RecordJob(ctx, "ingest", time.Second, nil)
	})
}
