package shipment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/application/pricing"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// memoryShipments is an in-memory shipment.Repository that enforces the
// dedup key constraint and optimistic locking like the SQL store.
type memoryShipments struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*shipment.Shipment
	history   map[uuid.UUID][]shipment.HistoryEntry
	staleOnce bool
	creates   int
}

func newMemoryShipments() *memoryShipments {
	return &memoryShipments{
		byID:    make(map[uuid.UUID]*shipment.Shipment),
		history: make(map[uuid.UUID][]shipment.HistoryEntry),
	}
}

func snapshot(s *shipment.Shipment) *shipment.Shipment {
	cp := *s
	cp.ClearDomainEvents()
	cp.ClearPendingHistory()
	return &cp
}

func (m *memoryShipments) FindByID(_ context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, shipment.ErrShipmentNotFound
	}
	return snapshot(s), nil
}

func (m *memoryShipments) FindByTrackingToken(_ context.Context, token string) (*shipment.Shipment, error) {
	return m.findOne(func(s *shipment.Shipment) bool { return s.TrackingToken == token })
}

func (m *memoryShipments) FindByTrackingCode(_ context.Context, clientID uuid.UUID, code string) (*shipment.Shipment, error) {
	return m.findOne(func(s *shipment.Shipment) bool {
		return !s.Deleted && s.ClientID == clientID && s.TrackingCode == code
	})
}

func (m *memoryShipments) FindByExternalShipmentID(_ context.Context, source shipment.Provider, id string) (*shipment.Shipment, error) {
	return m.findOne(func(s *shipment.Shipment) bool {
		return !s.Deleted && s.Source == source && s.ExternalShipmentID == id
	})
}

func (m *memoryShipments) FindSaleWindow(_ context.Context, clientRef string, from, to time.Time) ([]*shipment.Shipment, error) {
	return m.findAll(func(s *shipment.Shipment) bool {
		return !s.Deleted && s.ClientRef == clientRef && !s.SaleAt.Before(from) && !s.SaleAt.After(to)
	}), nil
}

func (m *memoryShipments) ExistsSearchCode(_ context.Context, code string) (bool, error) {
	return len(m.findAll(func(s *shipment.Shipment) bool { return s.SearchCode == code })) > 0, nil
}

func (m *memoryShipments) ListOpenBySource(_ context.Context, source shipment.Provider) ([]*shipment.Shipment, error) {
	return m.findAll(func(s *shipment.Shipment) bool { return s.Source == source && s.IsOpen() }), nil
}

func (m *memoryShipments) List(_ context.Context, f shipment.Filter) ([]*shipment.Shipment, int64, error) {
	all := m.findAll(func(s *shipment.Shipment) bool {
		if s.Deleted {
			return false
		}
		if f.ClientID != nil && s.ClientID != *f.ClientID {
			return false
		}
		if f.Source != "" && s.Source != f.Source {
			return false
		}
		if f.Status != "" && s.Status != f.Status {
			return false
		}
		return f.Search == "" || strings.Contains(s.Recipient.Name, f.Search)
	})
	total := int64(len(all))
	start := f.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memoryShipments) Create(_ context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.DedupKey != nil {
		for _, other := range m.byID {
			if other.DedupKey != nil && *other.DedupKey == *s.DedupKey {
				return shipment.ErrDuplicateDedupKey
			}
		}
	}
	m.creates++
	m.byID[s.ID] = snapshot(s)
	m.history[s.ID] = append(m.history[s.ID], s.PendingHistory()...)
	return nil
}

func (m *memoryShipments) Save(_ context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[s.ID]
	if !ok {
		return shipment.ErrShipmentNotFound
	}
	if m.staleOnce {
		m.staleOnce = false
		stored.Version++
		return shipment.ErrStaleShipment
	}
	if stored.Version != s.Version {
		return shipment.ErrStaleShipment
	}
	s.IncrementVersion()
	m.byID[s.ID] = snapshot(s)
	m.history[s.ID] = append(m.history[s.ID], s.PendingHistory()...)
	return nil
}

func (m *memoryShipments) History(_ context.Context, id uuid.UUID) ([]shipment.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shipment.HistoryEntry, len(m.history[id]))
	copy(out, m.history[id])
	return out, nil
}

func (m *memoryShipments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memoryShipments) findOne(match func(*shipment.Shipment) bool) (*shipment.Shipment, error) {
	found := m.findAll(match)
	if len(found) == 0 {
		return nil, shipment.ErrShipmentNotFound
	}
	return found[0], nil
}

func (m *memoryShipments) findAll(match func(*shipment.Shipment) bool) []*shipment.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*shipment.Shipment
	for _, s := range m.byID {
		if match(s) {
			out = append(out, snapshot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memoryClients struct {
	clients map[uuid.UUID]*integration.Client
}

func newMemoryClients(clients ...*integration.Client) *memoryClients {
	m := &memoryClients{clients: make(map[uuid.UUID]*integration.Client)}
	for _, c := range clients {
		m.clients[c.ID] = c
	}
	return m
}

func (m *memoryClients) FindByID(_ context.Context, id uuid.UUID) (*integration.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, integration.ErrClientNotFound
	}
	return c, nil
}

func (m *memoryClients) ListLinkedTo(_ context.Context, provider shipment.Provider) ([]*integration.Client, error) {
	var out []*integration.Client
	for _, c := range m.clients {
		if c.Link(provider) != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryClients) Create(_ context.Context, c *integration.Client) error {
	m.clients[c.ID] = c
	return nil
}

func (m *memoryClients) SaveLink(_ context.Context, _ *integration.ProviderLink) error {
	return nil
}

func (m *memoryClients) UpdateCredential(_ context.Context, _ uuid.UUID, _ shipment.Provider, _ integration.Credential) error {
	return nil
}

func (m *memoryClients) UpdateLastSynced(_ context.Context, _ uuid.UUID, _ shipment.Provider, _ time.Time) error {
	return nil
}

// fixedQuoter prices every postal code between 1000 and 1499 as CABA.
type fixedQuoter struct {
	price decimal.Decimal
}

func (q fixedQuoter) Quote(_ context.Context, postalCode string, priceListID *uuid.UUID) pricing.Quote {
	if !strings.HasPrefix(postalCode, "1") || len(postalCode) != 4 || postalCode >= "1500" {
		return pricing.Quote{Zone: shipment.UnzonedName}
	}
	if priceListID == nil {
		return pricing.Quote{Zone: "CABA"}
	}
	cost := q.price
	return pricing.Quote{Zone: "CABA", Cost: &cost}
}

type memoryLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	fail     error
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

type memoryLease struct {
	locker *memoryLocker
	key    string
	once   sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})
	return nil
}

func (m *memoryLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (shared.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	if m.held[key] {
		return nil, shared.ErrLeaseHeld
	}
	m.held[key] = true
	m.acquired = append(m.acquired, key)
	return &memoryLease{locker: m, key: key}, nil
}

func (m *memoryLocker) isHeld(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type stubLiveFetcher struct {
	draft *shipment.Draft
	err   error
	calls int
}

func (f *stubLiveFetcher) FetchDraft(_ context.Context, _ *integration.Client, _ shipment.Provider, _ string) (*shipment.Draft, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	d := *f.draft
	return &d, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	Recipient, Subject, Body string
}

func (n *recordingNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{recipient, subject, body})
	return nil
}

var errStoreDown = errors.New("store down")
