package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/telemetry"
)

// StatusSource reads the provider status of a live-tracked shipment.
type StatusSource interface {
	FetchStatus(ctx context.Context, client *integration.Client, provider shipment.Provider, shipmentID string) (shipment.Status, error)
}

// StatusApplier applies a provider reported status to a shipment.
type StatusApplier interface {
	ApplySync(ctx context.Context, sh *shipment.Shipment, target shipment.Status, origin shipment.Origin) (bool, error)
}

// StatusSyncConfig tunes the live status polling.
type StatusSyncConfig struct {
	Cadence    Cadence
	JobTimeout time.Duration
}

// StatusSyncer polls the status of every open shipment of a live-tracked
// provider and applies changes.
type StatusSyncer struct {
	config    StatusSyncConfig
	shipments shipment.Repository
	clients   integration.ClientRepository
	source    StatusSource
	applier   StatusApplier
	history   *RunHistory
	metrics   *telemetry.IngestionMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatusSyncer creates a new status syncer. history and metrics may be nil.
func NewStatusSyncer(
	config StatusSyncConfig,
	shipments shipment.Repository,
	clients integration.ClientRepository,
	source StatusSource,
	applier StatusApplier,
	history *RunHistory,
	metrics *telemetry.IngestionMetrics,
	log *zap.Logger,
) *StatusSyncer {
	if config.Cadence == nil {
		config.Cadence = Every(5 * time.Minute)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusSyncer{
		config:    config,
		shipments: shipments,
		clients:   clients,
		source:    source,
		applier:   applier,
		history:   history,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
	}
}

// Job returns the periodic job polling provider.
func (s *StatusSyncer) Job(provider shipment.Provider) *PeriodicJob {
	return NewPeriodicJob("status-sync:"+provider.String(), s.config.Cadence, s.config.JobTimeout, func(ctx context.Context) {
		s.RunProvider(ctx, provider)
	}, s.logger)
}

// RunProvider runs one polling pass. Shipments are grouped by client so
// each client is loaded once; a failing shipment or client is logged and
// skipped.
func (s *StatusSyncer) RunProvider(ctx context.Context, provider shipment.Provider) *Run {
	job := "status-sync:" + provider.String()
	ctx = logger.WithProvider(ctx, provider.String())
	ctx, span := telemetry.StartSpan(ctx, "scheduler.status_sync",
		telemetry.WithAttribute(telemetry.SpanAttrJob, job),
		telemetry.WithAttribute(telemetry.SpanAttrProvider, provider.String()),
	)
	defer span.End()

	run := NewRun(job, JobKindStatusSync, provider, s.now())
	log := logger.L(ctx, s.logger).With(zap.String("run_id", run.ID.String()))

	open, err := s.shipments.ListOpenBySource(ctx, provider)
	if err != nil {
		run.Fail(s.now(), err)
		telemetry.RecordError(span, err)
		log.Error("Failed to list open shipments", zap.Error(err))
		s.finish(ctx, run, err)
		return run
	}

	order, groups := groupByClient(open)
	for _, clientID := range order {
		if ctx.Err() != nil {
			break
		}
		client, err := s.clients.FindByID(ctx, clientID)
		if err != nil {
			log.Warn("Failed to load client, skipping its shipments",
				zap.String("client_id", clientID.String()),
				zap.Int("shipments", len(groups[clientID])),
				zap.Error(err),
			)
			run.failClient()
			continue
		}
		run.add(s.syncClient(ctx, provider, client, groups[clientID]))
	}

	run.Complete(s.now())
	telemetry.SetAttributes(span, "sync.status", run.Status.String(), "sync.items", run.Items, "sync.updated", run.Updated)
	log.Info("Status sync pass finished",
		zap.String("status", run.Status.String()),
		zap.Int("clients", run.Clients),
		zap.Int("shipments", run.Items),
		zap.Int("updated", run.Updated),
		zap.Int("failed", run.Failed),
		zap.Duration("duration", run.Duration()),
	)
	s.finish(ctx, run, nil)
	return run
}

func (s *StatusSyncer) syncClient(ctx context.Context, provider shipment.Provider, client *integration.Client, items []*shipment.Shipment) syncCounts {
	var counts syncCounts
	ctx = logger.WithClient(ctx, client.ID.String())

	for _, sh := range items {
		if ctx.Err() != nil {
			break
		}
		counts.items++
		log := logger.L(logger.WithShipment(ctx, sh.ID.String()), s.logger)

		if sh.ExternalShipmentID == "" {
			counts.skipped++
			log.Debug("Shipment has no provider shipment id, skipping")
			continue
		}
		status, err := s.source.FetchStatus(ctx, client, provider, sh.ExternalShipmentID)
		if err != nil {
			counts.failed++
			s.metrics.RecordSyncFailure(ctx, provider.String(), "status")
			log.Warn("Failed to fetch shipment status",
				zap.String("external_shipment_id", sh.ExternalShipmentID),
				zap.Error(err),
			)
			continue
		}
		changed, err := s.applier.ApplySync(ctx, sh, status, shipment.OriginPolling)
		if err != nil {
			counts.failed++
			log.Warn("Failed to apply synced status",
				zap.String("target", status.String()),
				zap.Error(err),
			)
			continue
		}
		if changed {
			counts.updated++
			s.metrics.RecordStatusUpdate(ctx, provider.String(), status.String())
			log.Info("Shipment status updated from provider", zap.String("status", status.String()))
		}
	}
	return counts
}

func (s *StatusSyncer) finish(ctx context.Context, run *Run, err error) {
	if s.history != nil {
		s.history.Add(run)
	}
	s.metrics.RecordJob(ctx, run.Job, run.Duration(), err)
}

// groupByClient buckets shipments by client, keeping first-seen order.
func groupByClient(items []*shipment.Shipment) ([]uuid.UUID, map[uuid.UUID][]*shipment.Shipment) {
	groups := make(map[uuid.UUID][]*shipment.Shipment)
	var order []uuid.UUID
	for _, sh := range items {
		if _, ok := groups[sh.ClientID]; !ok {
			order = append(order, sh.ClientID)
		}
		groups[sh.ClientID] = append(groups[sh.ClientID], sh)
	}
	return order, groups
}
