package shipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// ==================== Requests ====================

// RecipientInput is the recipient block of a manual shipment
type RecipientInput struct {
	Name       string `json:"name" binding:"required,min=1,max=200"`
	Address    string `json:"address" binding:"required,min=1,max=300"`
	Locality   string `json:"locality" binding:"max=120"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Phone      string `json:"phone" binding:"max=50"`
	Email      string `json:"email" binding:"omitempty,email"`
}

// CreateManualShipmentRequest represents a dispatch desk entry
type CreateManualShipmentRequest struct {
	ClientID          uuid.UUID       `json:"client_id" binding:"required"`
	ExternalReference string          `json:"external_reference" binding:"required,min=1,max=100"`
	OrderNumber       string          `json:"order_number" binding:"max=100"`
	Recipient         RecipientInput  `json:"recipient" binding:"required"`
	DeclaredValue     decimal.Decimal `json:"declared_value" binding:"gte=0"`
	WeightKg          decimal.Decimal `json:"weight_kg" binding:"gte=0"`
	ShippingMethod    string          `json:"shipping_method" binding:"max=100"`
	SaleAt            *time.Time      `json:"sale_at"`
	Actor             string          `json:"-"`
}

// TransitionShipmentRequest represents a manual status change
type TransitionShipmentRequest struct {
	Status           string `json:"status" binding:"required,shipment_status"`
	Note             string `json:"note" binding:"max=500"`
	ReceiverRole     string `json:"receiver_role" binding:"max=50"`
	ReceiverName     string `json:"receiver_name" binding:"max=200"`
	ReceiverDocument string `json:"receiver_document" binding:"max=50"`
	Actor            string `json:"-"`
}

// AssignDriverRequest represents a driver (re)assignment
type AssignDriverRequest struct {
	Driver string `json:"driver" binding:"required,min=1,max=100"`
	Actor  string `json:"-"`
}

// ScanShipmentRequest represents a QR scan of a live-tracked label
type ScanShipmentRequest struct {
	ClientID   uuid.UUID `json:"client_id" binding:"required"`
	ShipmentID string    `json:"shipment_id" binding:"required,min=1,max=64"`
	Actor      string    `json:"-"`
}

// ListShipmentsFilter represents list query parameters
type ListShipmentsFilter struct {
	ClientID *uuid.UUID
	Source   string
	Status   string
	Search   string
	Page     int
	PageSize int
}

// ==================== Responses ====================

// RecipientResponse is the recipient block of a shipment
type RecipientResponse struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Locality   string `json:"locality"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// ShipmentResponse is the operator view of a shipment
type ShipmentResponse struct {
	ID                 uuid.UUID         `json:"id"`
	Source             string            `json:"source"`
	ExternalReference  string            `json:"external_reference"`
	ExternalShipmentID string            `json:"external_shipment_id,omitempty"`
	ClientID           uuid.UUID         `json:"client_id"`
	ClientRef          string            `json:"client_ref"`
	Recipient          RecipientResponse `json:"recipient"`
	DeclaredValue      decimal.Decimal   `json:"declared_value"`
	WeightKg           decimal.Decimal   `json:"weight_kg"`
	ShippingMethod     string            `json:"shipping_method"`
	DeliveryZone       string            `json:"delivery_zone"`
	DeliveryCost       *decimal.Decimal  `json:"delivery_cost,omitempty"`
	Status             string            `json:"status"`
	AssignedDriver     string            `json:"assigned_driver,omitempty"`
	Collected          bool              `json:"collected"`
	TrackingToken      string            `json:"tracking_token"`
	TrackingCode       string            `json:"tracking_code,omitempty"`
	SearchCode         string            `json:"search_code"`
	ReceiverRole       string            `json:"receiver_role,omitempty"`
	ReceiverName       string            `json:"receiver_name,omitempty"`
	ReceiverDocument   string            `json:"receiver_document,omitempty"`
	SaleAt             time.Time         `json:"sale_at"`
	AssignedAt         *time.Time        `json:"assigned_at,omitempty"`
	CollectedAt        *time.Time        `json:"collected_at,omitempty"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	LastMovedAt        time.Time         `json:"last_moved_at"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	Version            int               `json:"version"`
}

// IngestResponse reports whether an ingestion created a shipment
type IngestResponse struct {
	Shipment ShipmentResponse `json:"shipment"`
	Created  bool             `json:"created"`
}

// HistoryEntryResponse is one ledger line
type HistoryEntryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	Origin    string    `json:"origin"`
}

// TrackingEvent is one public ledger line, without actor
type TrackingEvent struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingView is the public, read-only view behind a tracking token.
// It carries no internal identifier.
type TrackingView struct {
	TrackingCode  string          `json:"tracking_code,omitempty"`
	Status        string          `json:"status"`
	RecipientName string          `json:"recipient_name"`
	Locality      string          `json:"locality"`
	DeliveryZone  string          `json:"delivery_zone"`
	CreatedAt     time.Time       `json:"created_at"`
	LastMovedAt   time.Time       `json:"last_moved_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	Events        []TrackingEvent `json:"events"`
}

// ToShipmentResponse converts a domain shipment
func ToShipmentResponse(s *shipment.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ID:                 s.ID,
		Source:             s.Source.String(),
		ExternalReference:  s.ExternalReference,
		ExternalShipmentID: s.ExternalShipmentID,
		ClientID:           s.ClientID,
		ClientRef:          s.ClientRef,
		Recipient: RecipientResponse{
			Name:       s.Recipient.Name,
			Address:    s.Recipient.Address,
			Locality:   s.Recipient.Locality,
			PostalCode: s.Recipient.PostalCode,
			Phone:      s.Recipient.Phone,
			Email:      s.Recipient.Email,
		},
		DeclaredValue:  s.DeclaredValue,
		WeightKg:       s.WeightKg,
		ShippingMethod: s.ShippingMethod,
		DeliveryZone:   s.DeliveryZone,
		DeliveryCost:   s.DeliveryCost,
		Status:         s.Status.String(),
		AssignedDriver: s.AssignedDriver,
		Collected:      s.Collected,
		TrackingToken:  s.TrackingToken,
		TrackingCode:   s.TrackingCode,
		SearchCode:     s.SearchCode,
		SaleAt:         s.SaleAt,
		AssignedAt:     s.AssignedAt,
		CollectedAt:    s.CollectedAt,
		DeliveredAt:    s.DeliveredAt,
		CancelledAt:    s.CancelledAt,
		LastMovedAt:    s.LastMovedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	}
	if s.Receiver != nil {
		resp.ReceiverRole = s.Receiver.Role
		resp.ReceiverName = s.Receiver.Name
		resp.ReceiverDocument = s.Receiver.Document
	}
	return resp
}

// ToHistoryResponse converts ledger entries
func ToHistoryResponse(entries []shipment.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			Status:    e.Status.String(),
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Note:      e.Note,
			Origin:    string(e.Origin),
		}
	}
	return out
}

// ToTrackingView builds the public view of a shipment
func ToTrackingView(s *shipment.Shipment, entries []shipment.HistoryEntry) TrackingView {
	events := make([]TrackingEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, TrackingEvent{Status: e.Status.String(), Timestamp: e.Timestamp})
	}
	return TrackingView{
		TrackingCode:  s.TrackingCode,
		Status:        s.Status.String(),
		RecipientName: s.Recipient.Name,
		Locality:      s.Recipient.Locality,
		DeliveryZone:  s.DeliveryZone,
		CreatedAt:     s.CreatedAt,
		LastMovedAt:   s.LastMovedAt,
		DeliveredAt:   s.DeliveredAt,
		Events:        events,
	}
}
