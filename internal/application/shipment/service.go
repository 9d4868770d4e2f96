// Package shipment orchestrates ingestion and lifecycle operations on
// shipments.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/application/pricing"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

const (
	defaultSearchCodeAttempts = 8
	defaultLeaseTTL           = 30 * time.Second
	defaultLeaseWait          = 10 * time.Second
)

// Quoter resolves zone and cost for a postal code.
type Quoter interface {
	Quote(ctx context.Context, postalCode string, priceListID *uuid.UUID) pricing.Quote
}

// LiveFetcher reads a live-tracked shipment from its provider.
type LiveFetcher interface {
	FetchDraft(ctx context.Context, client *integration.Client, provider shipment.Provider, shipmentID string) (*shipment.Draft, error)
}

// Config tunes the ingestion pipeline.
type Config struct {
	DedupWindow        time.Duration
	DedupBucket        time.Duration
	LeaseTTL           time.Duration
	LeaseWait          time.Duration
	SearchCodeAttempts int
}

func (c Config) withDefaults() Config {
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
	if c.DedupBucket <= 0 {
		c.DedupBucket = 4 * time.Minute
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.LeaseWait <= 0 {
		c.LeaseWait = defaultLeaseWait
	}
	if c.SearchCodeAttempts <= 0 {
		c.SearchCodeAttempts = defaultSearchCodeAttempts
	}
	return c
}

// IngestResult is the outcome of ingesting one draft.
type IngestResult struct {
	Shipment *shipment.Shipment
	// Created is false when the draft matched a shipment already on file.
	Created bool
	// Skipped is true for drafts that are not deliverable (cancelled upstream).
	Skipped bool
}

// Service is the application service for shipments.
type Service struct {
	repo    shipment.Repository
	clients integration.ClientRepository
	dedup   *DedupEngine
	quoter  Quoter
	locker  shared.Locker
	events  shared.EventPublisher
	live    LiveFetcher
	codes   *shipment.SearchCodeGenerator
	cfg     Config
	logger  *zap.Logger
}

// NewService creates a new shipment service
func NewService(
	repo shipment.Repository,
	clients integration.ClientRepository,
	quoter Quoter,
	locker shared.Locker,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		repo:    repo,
		clients: clients,
		dedup:   NewDedupEngine(repo, cfg.DedupWindow),
		quoter:  quoter,
		locker:  locker,
		codes:   shipment.NewSearchCodeGenerator(),
		cfg:     cfg,
		logger:  logger,
	}
}

// SetEventPublisher sets the publisher of shipment domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.events = publisher
}

// SetLiveFetcher enables QR scan ingestion of live-tracked shipments
func (s *Service) SetLiveFetcher(live LiveFetcher) {
	s.live = live
}

// Dedup exposes the engine for callers that only need the lookup.
func (s *Service) Dedup() *DedupEngine {
	return s.dedup
}

// Ingest stores draft as a new shipment unless it duplicates one on file,
// in which case the existing shipment is returned untouched.
func (s *Service) Ingest(ctx context.Context, draft *shipment.Draft, client *integration.Client) (*IngestResult, error) {
	if draft.ClientID == uuid.Nil {
		draft.ClientID = client.ID
	}
	if strings.TrimSpace(draft.ClientRef) == "" {
		draft.ClientRef = client.Reference()
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if draft.ProvisionalStatus == shipment.StatusCancelled {
		s.logger.Debug("skipping order cancelled upstream",
			zap.String("provider", draft.Provider.String()),
			zap.String("external_reference", draft.ExternalReference),
		)
		return &IngestResult{Skipped: true}, nil
	}

	release := s.acquire(ctx, "ingest:"+client.ID.String())
	defer release()

	existing, err := s.dedup.FindExisting(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		return &IngestResult{Shipment: existing}, nil
	}

	created, err := s.create(ctx, draft, client, shipment.ActorSystemIngestion, shipment.OriginIngestion, true)
	if errors.Is(err, shipment.ErrDuplicateDedupKey) {
		winner, lookupErr := s.dedup.FindExisting(ctx, draft)
		if lookupErr == nil && winner != nil {
			s.logger.Info("concurrent ingestion resolved by dedup key",
				zap.String("shipment_id", winner.ID.String()),
				zap.String("client_ref", draft.ClientRef),
			)
			return &IngestResult{Shipment: winner}, nil
		}
		if lookupErr != nil {
			return nil, lookupErr
		}
		// Same bucket but outside the fuzzy window: a distinct order.
		created, err = s.create(ctx, draft, client, shipment.ActorSystemIngestion, shipment.OriginIngestion, false)
	}
	if err != nil {
		return nil, err
	}
	return &IngestResult{Shipment: created, Created: true}, nil
}

// IngestScanned handles a QR scan of a live-tracked label: the shipment is
// fetched through the provider fallback chain, ingested, and marked
// Collected when still awaiting pickup.
func (s *Service) IngestScanned(ctx context.Context, req ScanShipmentRequest) (*IngestResult, error) {
	if s.live == nil {
		return nil, integration.ErrUnsupportedProvider
	}
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	shipmentID := strings.TrimSpace(req.ShipmentID)
	actor := ActorOrDefault(req.Actor, "scanner")

	sh, err := s.repo.FindByExternalShipmentID(ctx, shipment.ProviderMercadoLibre, shipmentID)
	if err == nil && sh.ClientID != client.ID {
		s.logger.Warn("scanned shipment belongs to another client",
			zap.String("client_id", client.ID.String()),
			zap.String("external_shipment_id", shipmentID),
		)
		return nil, shipment.ErrShipmentNotFound
	}
	result := &IngestResult{Shipment: sh}
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		draft, err := s.live.FetchDraft(ctx, client, shipment.ProviderMercadoLibre, shipmentID)
		if err != nil {
			return nil, err
		}
		result, err = s.Ingest(ctx, draft, client)
		if err != nil {
			return nil, err
		}
		if result.Skipped {
			return result, nil
		}
	}

	if result.Shipment.Status == shipment.StatusAwaitingPickup {
		if err := s.applySync(ctx, result.Shipment, shipment.StatusCollected, actor, shipment.OriginScan); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CreateManual opens a shipment entered at the dispatch desk. Desk entries
// are not deduplicated: two parcels to the same recipient are legitimate.
func (s *Service) CreateManual(ctx context.Context, req CreateManualShipmentRequest) (*shipment.Shipment, error) {
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	draft := &shipment.Draft{
		Kind:              shipment.DraftKindManual,
		Provider:          shipment.ProviderManual,
		ClientID:          client.ID,
		ClientRef:         client.Reference(),
		ExternalReference: req.ExternalReference,
		OrderNumber:       req.OrderNumber,
		Recipient: shipment.Recipient{
			Name:       strings.TrimSpace(req.Recipient.Name),
			Address:    strings.TrimSpace(req.Recipient.Address),
			Locality:   shipment.OrPending(req.Recipient.Locality),
			PostalCode: shipment.OrPending(req.Recipient.PostalCode),
			Phone:      shipment.OrPending(req.Recipient.Phone),
			Email:      strings.TrimSpace(req.Recipient.Email),
		},
		DeclaredValue:     req.DeclaredValue,
		WeightKg:          req.WeightKg,
		ShippingMethod:    req.ShippingMethod,
		ProvisionalStatus: shipment.StatusAwaitingPickup,
	}
	if req.SaleAt != nil {
		draft.SaleAt = *req.SaleAt
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, draft, client, ActorOrDefault(req.Actor, "dispatch desk"), shipment.OriginManual, false)
}

// Transition applies a manual status change.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, req TransitionShipmentRequest) (*shipment.Shipment, error) {
	target := shipment.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !target.IsValid() {
		return nil, shipment.ErrInvalidStatus
	}
	sh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tr := shipment.TransitionRequest{
		Target: target,
		Actor:  ActorOrDefault(req.Actor, "operator"),
		Note:   req.Note,
	}
	if req.ReceiverRole != "" || req.ReceiverName != "" || req.ReceiverDocument != "" {
		tr.Receiver = &shipment.Receiver{Role: req.ReceiverRole, Name: req.ReceiverName, Document: req.ReceiverDocument}
	}
	if err := sh.Transition(tr); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// AssignDriver records a driver on the shipment.
func (s *Service) AssignDriver(ctx context.Context, id uuid.UUID, req AssignDriverRequest) (*shipment.Shipment, error) {
	sh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := sh.AssignDriver(req.Driver, ActorOrDefault(req.Actor, "operator"))
	if err != nil {
		return nil, err
	}
	if !changed {
		return sh, nil
	}
	if err := s.save(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// ApplySync applies a provider or scan reported status to sh. Unchanged
// statuses are not written.
func (s *Service) ApplySync(ctx context.Context, sh *shipment.Shipment, target shipment.Status, origin shipment.Origin) (bool, error) {
	before := sh.Status
	if err := s.applySync(ctx, sh, target, shipment.ActorSystemSync, origin); err != nil {
		return false, err
	}
	return sh.Status != before, nil
}

// SoftDelete hides a shipment and frees its dedup key.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	sh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := sh.SoftDelete(); err != nil {
		return err
	}
	return s.save(ctx, sh)
}

// Get returns a shipment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	return s.repo.FindByID(ctx, id)
}

// GetHistory returns the ledger of a shipment, oldest first.
func (s *Service) GetHistory(ctx context.Context, id uuid.UUID) ([]shipment.HistoryEntry, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// List returns a page of non-deleted shipments.
func (s *Service) List(ctx context.Context, f ListShipmentsFilter) ([]*shipment.Shipment, int64, error) {
	filter := shipment.Filter{
		ClientID:   f.ClientID,
		Source:     shipment.Provider(strings.ToLower(f.Source)),
		Status:     shipment.Status(strings.ToUpper(f.Status)),
		Search:     strings.TrimSpace(f.Search),
		Pagination: shared.Pagination{Page: f.Page, PageSize: f.PageSize}.Normalize(),
	}
	if filter.Source != "" && !filter.Source.IsValid() {
		return nil, 0, shared.NewValidationError("unknown source %q", f.Source)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shipment.ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

// Track returns the public view behind a tracking token.
func (s *Service) Track(ctx context.Context, token string) (*TrackingView, error) {
	token = strings.TrimSpace(token)
	if len(token) != shipment.TrackingTokenLength {
		return nil, shipment.ErrShipmentNotFound
	}
	sh, err := s.repo.FindByTrackingToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sh.Deleted {
		return nil, shipment.ErrShipmentNotFound
	}
	entries, err := s.repo.History(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	view := ToTrackingView(sh, entries)
	return &view, nil
}

func (s *Service) create(ctx context.Context, draft *shipment.Draft, client *integration.Client, actor string, origin shipment.Origin, withDedupKey bool) (*shipment.Shipment, error) {
	searchCode, err := s.nextSearchCode(ctx, draft.ExternalReference)
	if err != nil {
		return nil, err
	}

	params := shipment.NewShipmentParams{
		Draft:         draft,
		TrackingToken: shipment.NewTrackingToken(),
		SearchCode:    searchCode,
		Actor:         actor,
		Origin:        origin,
	}
	if withDedupKey && !draft.SaleAt.IsZero() {
		params.DedupKey = shipment.DedupKey(draft.ClientRef, draft.Recipient.Name, draft.SaleAt, s.cfg.DedupBucket)
	}
	sh, err := shipment.NewShipment(params)
	if err != nil {
		return nil, err
	}

	if s.quoter != nil {
		q := s.quoter.Quote(ctx, sh.Recipient.PostalCode, client.PriceListID)
		sh.ApplyPricing(q.Zone, q.Cost)
	}

	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, err
	}
	sh.ClearPendingHistory()

	s.logger.Info("shipment created",
		zap.String("shipment_id", sh.ID.String()),
		zap.String("provider", sh.Source.String()),
		zap.String("client_id", sh.ClientID.String()),
		zap.String("external_reference", sh.ExternalReference),
		zap.String("delivery_zone", sh.DeliveryZone),
	)
	s.publish(ctx, sh)
	return sh, nil
}

// applySync writes a synced status. A concurrent writer makes the save stale;
// the shipment is then reloaded and the status applied once more on top.
func (s *Service) applySync(ctx context.Context, sh *shipment.Shipment, target shipment.Status, actor string, origin shipment.Origin) error {
	changed, err := sh.ApplySync(target, actor, origin)
	if err != nil || !changed {
		return err
	}
	err = s.save(ctx, sh)
	if !errors.Is(err, shipment.ErrStaleShipment) {
		return err
	}

	fresh, err := s.repo.FindByID(ctx, sh.ID)
	if err != nil {
		return err
	}
	*sh = *fresh
	changed, err = sh.ApplySync(target, actor, origin)
	if err != nil || !changed {
		return err
	}
	return s.save(ctx, sh)
}

// save persists sh and publishes its events once the write succeeded.
func (s *Service) save(ctx context.Context, sh *shipment.Shipment) error {
	if err := s.repo.Save(ctx, sh); err != nil {
		return err
	}
	sh.ClearPendingHistory()
	s.publish(ctx, sh)
	return nil
}

func (s *Service) publish(ctx context.Context, sh *shipment.Shipment) {
	events := sh.GetDomainEvents()
	sh.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish shipment events",
			zap.String("shipment_id", sh.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) nextSearchCode(ctx context.Context, seed string) (string, error) {
	for i := 0; i < s.cfg.SearchCodeAttempts; i++ {
		code := s.codes.Next(seed)
		exists, err := s.repo.ExistsSearchCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", shipment.ErrSearchCodeExhausted
}

// acquire takes the per-client ingestion lease. When the lease backend is
// unreachable ingestion proceeds and the dedup key guards the insert.
func (s *Service) acquire(ctx context.Context, key string) func() {
	if s.locker == nil {
		return func() {}
	}
	lease, err := shared.AcquireWithin(ctx, s.locker, key, s.cfg.LeaseTTL, s.cfg.LeaseWait, 0)
	if err != nil {
		s.logger.Warn("ingestion lease unavailable, relying on dedup key",
			zap.String("key", key),
			zap.Error(err),
		)
		return func() {}
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release ingestion lease", zap.String("key", key), zap.Error(err))
		}
	}
}

// ActorOrDefault returns actor trimmed, or fallback when blank.
func ActorOrDefault(actor, fallback string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return fallback
}
