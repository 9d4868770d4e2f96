package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// ShipmentModel is the persistence model of the Shipment aggregate.
type ShipmentModel struct {
	AggregateModel
	Source             string           `gorm:"type:varchar(20);not null;index:idx_shipments_source_status,priority:1"`
	ExternalReference  string           `gorm:"type:varchar(100);not null"`
	ExternalShipmentID string           `gorm:"type:varchar(100);index"`
	ClientID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	ClientRef          string           `gorm:"type:varchar(200);not null;index:idx_shipments_client_sale,priority:1"`
	RecipientName      string           `gorm:"type:varchar(200)"`
	RecipientAddress   string           `gorm:"type:varchar(300)"`
	RecipientLocality  string           `gorm:"type:varchar(120)"`
	RecipientPostal    string           `gorm:"type:varchar(20)"`
	RecipientPhone     string           `gorm:"type:varchar(50)"`
	RecipientEmail     string           `gorm:"type:varchar(200)"`
	DeclaredValue      decimal.Decimal  `gorm:"type:decimal(14,2);not null"`
	WeightKg           decimal.Decimal  `gorm:"type:decimal(10,3);not null"`
	ShippingMethod     string           `gorm:"type:varchar(120)"`
	DeliveryZone       string           `gorm:"type:varchar(100);not null"`
	DeliveryCost       *decimal.Decimal `gorm:"type:decimal(14,2)"`
	Status             string           `gorm:"type:varchar(40);not null;index:idx_shipments_source_status,priority:2"`
	SaleAt             time.Time        `gorm:"not null;index:idx_shipments_client_sale,priority:2"`
	AssignedAt         *time.Time
	CollectedAt        *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	LastMovedAt        time.Time `gorm:"not null"`
	AssignedDriver     string    `gorm:"type:varchar(120)"`
	Collected          bool      `gorm:"not null;default:false"`
	Deleted            bool      `gorm:"not null;default:false;index"`
	TrackingToken      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_shipments_tracking_token"`
	TrackingCode       string    `gorm:"type:varchar(60);index"`
	SearchCode         string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_shipments_search_code"`
	DedupKey           *string   `gorm:"type:varchar(300);uniqueIndex:idx_shipments_dedup_key"`
	ReceiverRole       string    `gorm:"type:varchar(60)"`
	ReceiverName       string    `gorm:"type:varchar(200)"`
	ReceiverDocument   string    `gorm:"type:varchar(40)"`
}

// TableName returns the table name for GORM
func (ShipmentModel) TableName() string {
	return "shipments"
}

// ToDomain converts the persistence model to a domain Shipment.
func (m *ShipmentModel) ToDomain() *shipment.Shipment {
	s := &shipment.Shipment{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		Source:             shipment.Provider(m.Source),
		ExternalReference:  m.ExternalReference,
		ExternalShipmentID: m.ExternalShipmentID,
		ClientID:           m.ClientID,
		ClientRef:          m.ClientRef,
		Recipient: shipment.Recipient{
			Name:       m.RecipientName,
			Address:    m.RecipientAddress,
			Locality:   m.RecipientLocality,
			PostalCode: m.RecipientPostal,
			Phone:      m.RecipientPhone,
			Email:      m.RecipientEmail,
		},
		DeclaredValue:  m.DeclaredValue,
		WeightKg:       m.WeightKg,
		ShippingMethod: m.ShippingMethod,
		DeliveryZone:   m.DeliveryZone,
		DeliveryCost:   m.DeliveryCost,
		Status:         shipment.Status(m.Status),
		SaleAt:         m.SaleAt,
		AssignedAt:     m.AssignedAt,
		CollectedAt:    m.CollectedAt,
		DeliveredAt:    m.DeliveredAt,
		CancelledAt:    m.CancelledAt,
		LastMovedAt:    m.LastMovedAt,
		AssignedDriver: m.AssignedDriver,
		Collected:      m.Collected,
		Deleted:        m.Deleted,
		TrackingToken:  m.TrackingToken,
		TrackingCode:   m.TrackingCode,
		SearchCode:     m.SearchCode,
		DedupKey:       m.DedupKey,
	}
	if m.ReceiverRole != "" || m.ReceiverName != "" || m.ReceiverDocument != "" {
		s.Receiver = &shipment.Receiver{Role: m.ReceiverRole, Name: m.ReceiverName, Document: m.ReceiverDocument}
	}
	return s
}

// FromDomain populates the persistence model from a domain Shipment.
func (m *ShipmentModel) FromDomain(s *shipment.Shipment) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Source = string(s.Source)
	m.ExternalReference = s.ExternalReference
	m.ExternalShipmentID = s.ExternalShipmentID
	m.ClientID = s.ClientID
	m.ClientRef = s.ClientRef
	m.RecipientName = s.Recipient.Name
	m.RecipientAddress = s.Recipient.Address
	m.RecipientLocality = s.Recipient.Locality
	m.RecipientPostal = s.Recipient.PostalCode
	m.RecipientPhone = s.Recipient.Phone
	m.RecipientEmail = s.Recipient.Email
	m.DeclaredValue = s.DeclaredValue
	m.WeightKg = s.WeightKg
	m.ShippingMethod = s.ShippingMethod
	m.DeliveryZone = s.DeliveryZone
	m.DeliveryCost = s.DeliveryCost
	m.Status = string(s.Status)
	m.SaleAt = s.SaleAt.UTC()
	m.AssignedAt = utcPtr(s.AssignedAt)
	m.CollectedAt = utcPtr(s.CollectedAt)
	m.DeliveredAt = utcPtr(s.DeliveredAt)
	m.CancelledAt = utcPtr(s.CancelledAt)
	m.LastMovedAt = s.LastMovedAt.UTC()
	m.AssignedDriver = s.AssignedDriver
	m.Collected = s.Collected
	m.Deleted = s.Deleted
	m.TrackingToken = s.TrackingToken
	m.TrackingCode = s.TrackingCode
	m.SearchCode = s.SearchCode
	m.DedupKey = s.DedupKey
	m.ReceiverRole, m.ReceiverName, m.ReceiverDocument = "", "", ""
	if s.Receiver != nil {
		m.ReceiverRole = s.Receiver.Role
		m.ReceiverName = s.Receiver.Name
		m.ReceiverDocument = s.Receiver.Document
	}
}

// ShipmentHistoryModel is one append-only ledger line.
type ShipmentHistoryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ShipmentID uuid.UUID `gorm:"type:uuid;not null;index:idx_shipment_history_shipment,priority:1"`
	Status     string    `gorm:"type:varchar(40);not null"`
	Timestamp  time.Time `gorm:"column:occurred_at;not null;index:idx_shipment_history_shipment,priority:2"`
	Actor      string    `gorm:"type:varchar(120);not null"`
	Note       string    `gorm:"type:text"`
	Origin     string    `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (ShipmentHistoryModel) TableName() string {
	return "shipment_history"
}

// ToDomain converts the persistence model to a domain HistoryEntry.
func (m *ShipmentHistoryModel) ToDomain() shipment.HistoryEntry {
	return shipment.HistoryEntry{
		ID:         m.ID,
		ShipmentID: m.ShipmentID,
		Status:     shipment.Status(m.Status),
		Timestamp:  m.Timestamp,
		Actor:      m.Actor,
		Note:       m.Note,
		Origin:     shipment.Origin(m.Origin),
	}
}

// HistoryFromDomain converts a domain HistoryEntry.
func HistoryFromDomain(e shipment.HistoryEntry) ShipmentHistoryModel {
	return ShipmentHistoryModel{
		ID:         e.ID,
		ShipmentID: e.ShipmentID,
		Status:     string(e.Status),
		Timestamp:  e.Timestamp.UTC(),
		Actor:      e.Actor,
		Note:       e.Note,
		Origin:     string(e.Origin),
	}
}
