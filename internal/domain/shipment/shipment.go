package shipment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

const aggregateType = "Shipment"

// Recipient is the delivery destination block.
type Recipient struct {
	Name       string
	Address    string
	Locality   string
	PostalCode string
	Phone      string
	Email      string
}

// Receiver is who physically took the parcel on delivery.
type Receiver struct {
	Role     string
	Name     string
	Document string
}

// Shipment is the canonical unit of work of the operator. Status changes go
// only through Transition, ApplySync and AssignDriver; each accepted change
// is buffered as a HistoryEntry until the repository persists it.
type Shipment struct {
	shared.BaseAggregateRoot
	Source             Provider
	ExternalReference  string
	ExternalShipmentID string
	ClientID           uuid.UUID
	ClientRef          string
	Recipient          Recipient
	DeclaredValue      decimal.Decimal
	WeightKg           decimal.Decimal
	ShippingMethod     string
	DeliveryZone       string
	DeliveryCost       *decimal.Decimal
	Status             Status
	SaleAt             time.Time
	AssignedAt         *time.Time
	CollectedAt        *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	LastMovedAt        time.Time
	AssignedDriver     string
	Collected          bool
	Deleted            bool
	TrackingToken      string
	TrackingCode       string
	SearchCode         string
	DedupKey           *string
	Receiver           *Receiver

	pendingHistory []HistoryEntry
}

// NewShipmentParams carries everything needed to open a shipment.
type NewShipmentParams struct {
	Draft         *Draft
	TrackingToken string
	SearchCode    string
	DedupKey      string
	Actor         string
	Origin        Origin
}

// NewShipment creates a shipment in AwaitingPickup from a validated draft and
// buffers its first history entry.
func NewShipment(p NewShipmentParams) (*Shipment, error) {
	if p.Draft == nil {
		return nil, fmt.Errorf("%w: draft is nil", ErrInvalidDraft)
	}
	if err := p.Draft.Validate(); err != nil {
		return nil, err
	}
	if len(p.TrackingToken) != TrackingTokenLength {
		return nil, shared.NewValidationError("tracking token must be %d characters", TrackingTokenLength)
	}
	if strings.TrimSpace(p.Actor) == "" {
		p.Actor = ActorSystemIngestion
	}
	if p.Origin == "" {
		p.Origin = OriginIngestion
	}

	d := p.Draft
	s := &Shipment{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Source:             d.Provider,
		ExternalReference:  strings.TrimSpace(d.ExternalReference),
		ExternalShipmentID: d.ExternalShipmentID(),
		ClientID:           d.ClientID,
		ClientRef:          d.ClientRef,
		Recipient:          d.Recipient,
		DeclaredValue:      d.DeclaredValue,
		WeightKg:           d.WeightKg,
		ShippingMethod:     d.ShippingMethod,
		DeliveryZone:       UnzonedName,
		Status:             StatusAwaitingPickup,
		SaleAt:             d.SaleAt,
		TrackingToken:      p.TrackingToken,
		TrackingCode:       d.TrackingCode(),
		SearchCode:         p.SearchCode,
	}
	if s.SaleAt.IsZero() {
		s.SaleAt = s.CreatedAt
	}
	s.LastMovedAt = s.CreatedAt
	if p.DedupKey != "" {
		key := p.DedupKey
		s.DedupKey = &key
	}

	s.record(StatusAwaitingPickup, p.Actor, "shipment created", p.Origin, s.CreatedAt)
	return s, nil
}

// TransitionRequest is a manual status change.
type TransitionRequest struct {
	Target   Status
	Actor    string
	Note     string
	Receiver *Receiver
}

// Transition applies a manual status change. Live-tracked shipments refuse
// every manual transition regardless of target.
func (s *Shipment) Transition(req TransitionRequest) error {
	if s.Deleted {
		return ErrShipmentDeleted
	}
	if s.Source.IsLiveTracked() {
		return ErrManualTransitionForbidden
	}
	if !req.Target.IsValid() {
		return ErrInvalidStatus
	}
	if s.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	if !s.Status.CanTransitionTo(req.Target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, req.Target)
	}
	s.apply(req.Target, req.Actor, req.Note, OriginManual, req.Receiver)
	return nil
}

// ApplySync applies a status reported by a provider or scan. It returns false
// when the status is already the target or the report lags behind it.
func (s *Shipment) ApplySync(target Status, actor string, origin Origin) (bool, error) {
	if s.Deleted {
		return false, ErrShipmentDeleted
	}
	if !target.IsValid() {
		return false, ErrInvalidStatus
	}
	if target == s.Status {
		return false, nil
	}
	if s.Status.IsTerminal() {
		return false, ErrTerminalStatus
	}
	// Providers keep reporting the previous stage until they register a
	// scan, so a backwards report is stale rather than a change.
	if s.Status.RegressesTo(target) {
		return false, nil
	}
	s.apply(target, actor, "", origin, nil)
	return true, nil
}

// AssignDriver records a driver. Assigning while Collected moves the shipment
// en route, except for live-tracked shipments whose status belongs to sync.
// Reassigning the same driver is a no-op and returns false.
func (s *Shipment) AssignDriver(driver, actor string) (bool, error) {
	driver = strings.TrimSpace(driver)
	if driver == "" {
		return false, ErrDriverRequired
	}
	if s.Deleted {
		return false, ErrShipmentDeleted
	}
	if s.Status.IsTerminal() {
		return false, ErrTerminalStatus
	}
	if s.AssignedDriver == driver {
		return false, nil
	}

	now := time.Now()
	s.AssignedDriver = driver
	s.AssignedAt = &now
	s.Touch(now)

	if s.Status == StatusCollected && !s.Source.IsLiveTracked() {
		from := s.Status
		s.Status = StatusEnRouteToRecipient
		s.LastMovedAt = now
		s.AddDomainEvent(NewStatusChangedEvent(s, from, OriginAssignment))
	}
	s.record(s.Status, actor, "driver assigned: "+driver, OriginAssignment, now)
	return true, nil
}

// SoftDelete hides the shipment and frees its dedup key so the same order
// can be ingested again.
func (s *Shipment) SoftDelete() error {
	if s.Deleted {
		return ErrShipmentDeleted
	}
	s.Deleted = true
	s.DedupKey = nil
	s.Touch(time.Now())
	return nil
}

// ApplyPricing sets the zone and, when known, the delivery cost.
func (s *Shipment) ApplyPricing(zone string, cost *decimal.Decimal) {
	if strings.TrimSpace(zone) == "" {
		zone = UnzonedName
	}
	s.DeliveryZone = zone
	s.DeliveryCost = cost
}

// IsOpen reports whether polling should still look at the shipment.
func (s *Shipment) IsOpen() bool {
	return !s.Deleted && !s.Status.IsTerminal()
}

// PendingHistory returns history entries not yet persisted.
func (s *Shipment) PendingHistory() []HistoryEntry {
	return s.pendingHistory
}

// ClearPendingHistory drops buffered entries after they were persisted.
func (s *Shipment) ClearPendingHistory() {
	s.pendingHistory = nil
}

func (s *Shipment) apply(target Status, actor, note string, origin Origin, receiver *Receiver) {
	now := time.Now()
	from := s.Status
	s.Status = target
	s.LastMovedAt = now
	s.Touch(now)

	firstCollection := false
	switch target {
	case StatusCollected:
		if !s.Collected {
			s.Collected = true
			s.CollectedAt = &now
			firstCollection = true
		}
	case StatusDelivered:
		s.DeliveredAt = &now
		if receiver != nil {
			r := *receiver
			s.Receiver = &r
		}
	case StatusCancelled:
		s.CancelledAt = &now
	}

	s.record(target, actor, note, origin, now)
	s.AddDomainEvent(NewStatusChangedEvent(s, from, origin))
	if firstCollection {
		s.AddDomainEvent(NewCollectedEvent(s))
	}
}

func (s *Shipment) record(status Status, actor, note string, origin Origin, at time.Time) {
	if strings.TrimSpace(actor) == "" {
		actor = "unknown"
	}
	s.pendingHistory = append(s.pendingHistory, newHistoryEntry(s.ID, status, at, actor, note, origin))
}
