package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Ingestion outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// IngestionMetrics counts what the ingestion and status sync pipelines do.
// A nil *IngestionMetrics is valid and records nothing.
type IngestionMetrics struct {
	ingested      *Counter
	syncFailures  *Counter
	tokenRefresh  *Counter
	statusUpdates *Counter
	jobDuration   *Histogram
}

// NewIngestionMetrics registers the pipeline instruments on meter.
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	var (
		m   IngestionMetrics
		err error
	)
	if m.ingested, err = NewCounter(meter, "tms_shipments_ingested_total",
		"Orders seen by ingestion, by provider and outcome", "{order}"); err != nil {
		return nil, err
	}
	if m.syncFailures, err = NewCounter(meter, "tms_provider_sync_failures_total",
		"Failed provider calls, by provider and pipeline stage", "{failure}"); err != nil {
		return nil, err
	}
	if m.tokenRefresh, err = NewCounter(meter, "tms_token_refresh_total",
		"OAuth token refreshes, by provider and result", "{refresh}"); err != nil {
		return nil, err
	}
	if m.statusUpdates, err = NewCounter(meter, "tms_status_sync_updates_total",
		"Shipment statuses changed by the status sync", "{update}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "tms_scheduler_job_duration_seconds",
		Description: "Scheduler job run time",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordIngest counts one order passing through ingestion.
func (m *IngestionMetrics) RecordIngest(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.ingested.Inc(ctx, AttrProvider.String(provider), AttrOutcome.String(outcome))
}

// RecordSyncFailure counts a failed provider call at stage (list, fetch, status).
func (m *IngestionMetrics) RecordSyncFailure(ctx context.Context, provider, stage string) {
	if m == nil {
		return
	}
	m.syncFailures.Inc(ctx, AttrProvider.String(provider), AttrStage.String(stage))
}

// RecordTokenRefresh counts a token refresh attempt.
func (m *IngestionMetrics) RecordTokenRefresh(ctx context.Context, provider string, err error) {
	if m == nil {
		return
	}
	m.tokenRefresh.Inc(ctx, AttrProvider.String(provider), AttrResult.String(resultOf(err)))
}

// RecordStatusUpdate counts a shipment moved by the status sync.
func (m *IngestionMetrics) RecordStatusUpdate(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.statusUpdates.Inc(ctx, AttrProvider.String(provider), AttrStatus.String(status))
}

// RecordJob records the run time of a scheduler job.
func (m *IngestionMetrics) RecordJob(ctx context.Context, job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobDuration.RecordDuration(ctx, d, AttrJob.String(job), AttrResult.String(resultOf(err)))
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
