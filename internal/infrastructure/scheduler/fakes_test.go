package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appshipment "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

type fakeClients struct {
	integration.ClientRepository

	mu         sync.Mutex
	clients    map[uuid.UUID]*integration.Client
	linked     []*integration.Client
	listErr    error
	lastSynced map[uuid.UUID]time.Time
}

func newFakeClients(clients ...*integration.Client) *fakeClients {
	f := &fakeClients{clients: make(map[uuid.UUID]*integration.Client), lastSynced: make(map[uuid.UUID]time.Time)}
	for _, c := range clients {
		f.clients[c.ID] = c
		f.linked = append(f.linked, c)
	}
	return f
}

func (f *fakeClients) FindByID(_ context.Context, id uuid.UUID) (*integration.Client, error) {
	if c, ok := f.clients[id]; ok {
		return c, nil
	}
	return nil, integration.ErrClientNotFound
}

func (f *fakeClients) ListLinkedTo(_ context.Context, _ shipment.Provider) ([]*integration.Client, error) {
	return f.linked, f.listErr
}

func (f *fakeClients) UpdateLastSynced(_ context.Context, clientID uuid.UUID, _ shipment.Provider, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSynced[clientID] = at
	return nil
}

func (f *fakeClients) synced(clientID uuid.UUID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.lastSynced[clientID]
	return at, ok
}

// fakeSource serves canned orders per store. Orders whose ID starts with
// "bad" fail to normalize.
type fakeSource struct {
	provider shipment.Provider
	orders   map[string][]integration.RawOrder
	methods  map[string]string
	fetchErr map[string]error

	mu     sync.Mutex
	since  map[string]time.Time
	tokens []string
}

func (s *fakeSource) Provider() shipment.Provider { return s.provider }

func (s *fakeSource) Normalize(raw integration.RawOrder, client *integration.Client) (*shipment.Draft, error) {
	if strings.HasPrefix(raw.ID, "bad") {
		return nil, integration.ErrMalformedPayload
	}
	return &shipment.Draft{
		Kind:              shipment.DraftKindSnapshot,
		Provider:          s.provider,
		ClientID:          client.ID,
		ClientRef:         client.Reference(),
		ExternalReference: raw.ID,
		OrderNumber:       raw.ID,
		ProvisionalStatus: shipment.StatusAwaitingPickup,
		SaleAt:            time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
		Snapshot:          &shipment.SnapshotDetails{},
	}, nil
}

func (s *fakeSource) FetchOrders(_ context.Context, link *integration.ProviderLink, token string, since time.Time) ([]integration.RawOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.since == nil {
		s.since = make(map[string]time.Time)
	}
	s.since[link.ExternalAccountID] = since
	s.tokens = append(s.tokens, token)
	if err := s.fetchErr[link.ExternalAccountID]; err != nil {
		return nil, err
	}
	return s.orders[link.ExternalAccountID], nil
}

func (s *fakeSource) ShippingMethod(raw integration.RawOrder) string {
	return s.methods[raw.ID]
}

type fakeSources struct {
	source integration.OrderSource
}

func (f fakeSources) OrderSource(shipment.Provider) (integration.OrderSource, error) {
	if f.source == nil {
		return nil, integration.ErrUnsupportedProvider
	}
	return f.source, nil
}

type fakeTokens struct{}

func (fakeTokens) Do(ctx context.Context, clientID uuid.UUID, _ shipment.Provider, fn func(ctx context.Context, token string) error) error {
	return fn(ctx, "token-"+clientID.String()[:8])
}

// fakeIngester answers by external reference: "dup" prefixed references
// already exist, "err" prefixed ones fail, "cancel" prefixed ones are skipped.
type fakeIngester struct {
	mu       sync.Mutex
	ingested []string
}

func (f *fakeIngester) Ingest(_ context.Context, draft *shipment.Draft, _ *integration.Client) (*appshipment.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := draft.ExternalReference
	f.ingested = append(f.ingested, ref)
	switch {
	case strings.HasPrefix(ref, "dup"):
		return &appshipment.IngestResult{Shipment: &shipment.Shipment{}}, nil
	case strings.HasPrefix(ref, "err"):
		return nil, errors.New("database unavailable")
	case strings.HasPrefix(ref, "cancel"):
		return &appshipment.IngestResult{Skipped: true}, nil
	}
	return &appshipment.IngestResult{Shipment: &shipment.Shipment{}, Created: true}, nil
}

type fakeShipments struct {
	shipment.Repository
	open    []*shipment.Shipment
	listErr error
}

func (f *fakeShipments) ListOpenBySource(context.Context, shipment.Provider) ([]*shipment.Shipment, error) {
	return f.open, f.listErr
}

type fakeStatusSource struct {
	statuses map[string]shipment.Status
	errs     map[string]error
}

func (f *fakeStatusSource) FetchStatus(_ context.Context, _ *integration.Client, _ shipment.Provider, id string) (shipment.Status, error) {
	if err := f.errs[id]; err != nil {
		return "", err
	}
	return f.statuses[id], nil
}

type fakeApplier struct {
	mu      sync.Mutex
	applied map[string]shipment.Status
}

func (f *fakeApplier) ApplySync(_ context.Context, sh *shipment.Shipment, target shipment.Status, origin shipment.Origin) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if origin != shipment.OriginPolling {
		return false, errors.New("unexpected origin")
	}
	if f.applied == nil {
		f.applied = make(map[string]shipment.Status)
	}
	changed, err := sh.ApplySync(target, shipment.ActorSystemSync, origin)
	if err != nil {
		return false, err
	}
	f.applied[sh.ExternalShipmentID] = sh.Status
	return changed, nil
}

func newLinkedClient(code string, provider shipment.Provider, storeID string, lastSynced *time.Time) *integration.Client {
	id := uuid.New()
	return &integration.Client{
		ID:   id,
		Code: code,
		Name: "Client " + code,
		Links: []integration.ProviderLink{{
			ID:                uuid.New(),
			ClientID:          id,
			Provider:          provider,
			ExternalAccountID: storeID,
			LastSyncedAt:      lastSynced,
		}},
	}
}

func liveShipment(clientID uuid.UUID, externalID string, status shipment.Status) *shipment.Shipment {
	return &shipment.Shipment{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Source:             shipment.ProviderMercadoLibre,
		ExternalShipmentID: externalID,
		ClientID:           clientID,
		Status:             status,
	}
}

func raw(ids ...string) []integration.RawOrder {
	out := make([]integration.RawOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, integration.RawOrder{ID: id, Payload: []byte(`{}`)})
	}
	return out
}
