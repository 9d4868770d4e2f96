package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appshipment "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/telemetry"
)

// Ingester stores normalized drafts.
type Ingester interface {
	Ingest(ctx context.Context, draft *shipment.Draft, client *integration.Client) (*appshipment.IngestResult, error)
}

// TokenRunner runs a provider call with a valid access token of a client.
type TokenRunner interface {
	Do(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, fn func(ctx context.Context, token string) error) error
}

// SourceResolver returns the order source of a provider.
type SourceResolver interface {
	OrderSource(provider shipment.Provider) (integration.OrderSource, error)
}

// IngestionConfig tunes the storefront ingestion passes.
type IngestionConfig struct {
	Interval        time.Duration
	Lookback        time.Duration
	InitialLookback time.Duration
	JobTimeout      time.Duration
	LeaseTTL        time.Duration
}

// IngestionSyncer pulls recent orders of every client linked to a snapshot
// provider and feeds them through ingestion.
type IngestionSyncer struct {
	config  IngestionConfig
	clients integration.ClientRepository
	sources SourceResolver
	tokens  TokenRunner
	ingest  Ingester
	locker  shared.Locker
	history *RunHistory
	metrics *telemetry.IngestionMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestionSyncer creates a new ingestion syncer. locker, history and
// metrics may be nil.
func NewIngestionSyncer(
	config IngestionConfig,
	clients integration.ClientRepository,
	sources SourceResolver,
	tokens TokenRunner,
	ingest Ingester,
	locker shared.Locker,
	history *RunHistory,
	metrics *telemetry.IngestionMetrics,
	log *zap.Logger,
) *IngestionSyncer {
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestionSyncer{
		config:  config,
		clients: clients,
		sources: sources,
		tokens:  tokens,
		ingest:  ingest,
		locker:  locker,
		history: history,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

// Job returns the periodic job ingesting provider.
func (s *IngestionSyncer) Job(provider shipment.Provider) *PeriodicJob {
	name := "ingestion:" + provider.String()
	return NewPeriodicJob(name, Every(s.config.Interval), s.config.JobTimeout, func(ctx context.Context) {
		s.RunProvider(ctx, provider)
	}, s.logger)
}

// RunProvider runs one pass over every client linked to provider.
func (s *IngestionSyncer) RunProvider(ctx context.Context, provider shipment.Provider) *Run {
	job := "ingestion:" + provider.String()
	ctx = logger.WithProvider(ctx, provider.String())
	ctx, span := telemetry.StartSpan(ctx, "scheduler.ingestion",
		telemetry.WithAttribute(telemetry.SpanAttrJob, job),
		telemetry.WithAttribute(telemetry.SpanAttrProvider, provider.String()),
	)
	defer span.End()

	run := NewRun(job, JobKindIngestion, provider, s.now())
	log := logger.L(ctx, s.logger).With(zap.String("run_id", run.ID.String()))

	clients, err := s.clients.ListLinkedTo(ctx, provider)
	if err != nil {
		run.Fail(s.now(), err)
		telemetry.RecordError(span, err)
		log.Error("Failed to list linked clients", zap.Error(err))
		s.finish(ctx, run, err)
		return run
	}

	for _, client := range clients {
		if ctx.Err() != nil {
			break
		}
		counts, err := s.syncClient(ctx, provider, client)
		switch {
		case errors.Is(err, ErrSyncInProgress):
			log.Info("Client sync already running elsewhere, skipping", zap.String("client_id", client.ID.String()))
			continue
		case err != nil:
			run.failClient()
			continue
		}
		run.add(counts)
	}

	run.Complete(s.now())
	telemetry.SetAttributes(span, "sync.status", run.Status.String(), "sync.items", run.Items, "sync.failed", run.Failed)
	log.Info("Ingestion pass finished",
		zap.String("status", run.Status.String()),
		zap.Int("clients", run.Clients),
		zap.Int("clients_failed", run.ClientsFailed),
		zap.Int("orders", run.Items),
		zap.Int("created", run.Created),
		zap.Int("existing", run.Existing),
		zap.Int("skipped", run.Skipped),
		zap.Int("filtered", run.Filtered),
		zap.Int("failed", run.Failed),
		zap.Duration("duration", run.Duration()),
	)
	s.finish(ctx, run, nil)
	return run
}

// SyncClient runs one pass for a single client, e.g. right after linking.
func (s *IngestionSyncer) SyncClient(ctx context.Context, provider shipment.Provider, clientID uuid.UUID) error {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return err
	}
	run := NewRun("sync-client:"+provider.String(), JobKindIngestion, provider, s.now())
	counts, err := s.syncClient(ctx, provider, client)
	if err != nil {
		run.failClient()
	} else {
		run.add(counts)
	}
	run.Complete(s.now())
	s.finish(ctx, run, err)
	return err
}

func (s *IngestionSyncer) finish(ctx context.Context, run *Run, err error) {
	if s.history != nil {
		s.history.Add(run)
	}
	s.metrics.RecordJob(ctx, run.Job, run.Duration(), err)
}

// syncClient fetches and ingests the client's orders since its last sync.
// LastSyncedAt only advances after a pass without failures, so failed
// orders are fetched again next time.
func (s *IngestionSyncer) syncClient(ctx context.Context, provider shipment.Provider, client *integration.Client) (syncCounts, error) {
	var counts syncCounts
	ctx = logger.WithClient(ctx, client.ID.String())
	log := logger.L(ctx, s.logger)

	link := client.Link(provider)
	if link == nil {
		return counts, integration.ErrLinkNotFound
	}
	source, err := s.sources.OrderSource(provider)
	if err != nil {
		log.Error("No order source for provider", zap.Error(err))
		return counts, err
	}

	release, err := s.lease(ctx, provider, client.ID)
	if err != nil {
		return counts, err
	}
	defer release()

	started := s.now()
	since := link.SyncSince(started, s.config.Lookback, s.config.InitialLookback)

	var orders []integration.RawOrder
	err = s.tokens.Do(ctx, client.ID, provider, func(ctx context.Context, token string) error {
		var fetchErr error
		orders, fetchErr = source.FetchOrders(ctx, link, token, since)
		return fetchErr
	})
	if err != nil {
		s.metrics.RecordSyncFailure(ctx, provider.String(), "list")
		log.Error("Failed to fetch orders", zap.Time("since", since), zap.Error(err))
		return counts, fmt.Errorf("fetch orders: %w", err)
	}

	for _, raw := range orders {
		counts.items++
		outcome := s.ingestOne(ctx, source, link, client, raw, &counts)
		s.metrics.RecordIngest(ctx, provider.String(), outcome)
	}

	if counts.failed == 0 {
		if err := s.clients.UpdateLastSynced(ctx, client.ID, provider, started); err != nil {
			log.Warn("Failed to store last sync time", zap.Error(err))
		}
	}
	log.Debug("Client sync finished",
		zap.Time("since", since),
		zap.Int("orders", counts.items),
		zap.Int("created", counts.created),
		zap.Int("failed", counts.failed),
	)
	return counts, nil
}

func (s *IngestionSyncer) ingestOne(
	ctx context.Context,
	source integration.OrderSource,
	link *integration.ProviderLink,
	client *integration.Client,
	raw integration.RawOrder,
	counts *syncCounts,
) string {
	log := logger.L(ctx, s.logger).With(zap.String("order_id", raw.ID))

	if method := source.ShippingMethod(raw); !link.AcceptsShippingMethod(method) {
		counts.filtered++
		log.Debug("Order filtered by shipping method", zap.String("shipping_method", method))
		return telemetry.OutcomeSkipped
	}

	draft, err := source.Normalize(raw, client)
	if err != nil {
		counts.failed++
		log.Warn("Failed to normalize order", zap.Error(err))
		return telemetry.OutcomeFailed
	}

	result, err := s.ingest.Ingest(ctx, draft, client)
	switch {
	case err != nil:
		counts.failed++
		log.Warn("Failed to ingest order", zap.Error(err))
		return telemetry.OutcomeFailed
	case result.Skipped:
		counts.skipped++
		return telemetry.OutcomeSkipped
	case result.Created:
		counts.created++
		return telemetry.OutcomeCreated
	default:
		counts.existing++
		return telemetry.OutcomeExisting
	}
}

// lease guards a client/provider pass across workers and replicas.
func (s *IngestionSyncer) lease(ctx context.Context, provider shipment.Provider, clientID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := "sync:" + provider.String() + ":" + clientID.String()
	lease, err := s.locker.TryAcquire(ctx, key, s.config.LeaseTTL)
	if errors.Is(err, shared.ErrLeaseHeld) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		logger.L(ctx, s.logger).Warn("Sync lease unavailable, continuing without it", zap.Error(err))
		return func() {}, nil
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.L(ctx, s.logger).Warn("Failed to release sync lease", zap.Error(err))
		}
	}, nil
}
