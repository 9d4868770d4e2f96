package shipment

import (
	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

const (
	EventTypeStatusChanged = "ShipmentStatusChanged"
	EventTypeCollected     = "ShipmentCollected"
)

// StatusChangedEvent is raised on every accepted status change.
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	ShipmentID uuid.UUID `json:"shipment_id"`
	ClientID   uuid.UUID `json:"client_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Origin     Origin    `json:"origin"`
}

// NewStatusChangedEvent snapshots a status change of s.
func NewStatusChangedEvent(s *Shipment, from Status, origin Origin) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, aggregateType, s.ID),
		ShipmentID:      s.ID,
		ClientID:        s.ClientID,
		From:            from,
		To:              s.Status,
		Origin:          origin,
	}
}

// CollectedEvent is raised the first time a shipment enters Collected.
// It carries what the recipient notification needs.
type CollectedEvent struct {
	shared.BaseDomainEvent
	ShipmentID     uuid.UUID `json:"shipment_id"`
	ClientRef      string    `json:"client_ref"`
	RecipientName  string    `json:"recipient_name"`
	RecipientEmail string    `json:"recipient_email"`
	TrackingToken  string    `json:"tracking_token"`
}

// NewCollectedEvent snapshots the notification data of s.
func NewCollectedEvent(s *Shipment) *CollectedEvent {
	return &CollectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollected, aggregateType, s.ID),
		ShipmentID:      s.ID,
		ClientRef:       s.ClientRef,
		RecipientName:   s.Recipient.Name,
		RecipientEmail:  s.Recipient.Email,
		TrackingToken:   s.TrackingToken,
	}
}
