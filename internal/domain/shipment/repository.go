package shipment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

// Filter narrows shipment listings.
type Filter struct {
	ClientID *uuid.UUID
	Source   Provider
	Status   Status
	Search   string
	shared.Pagination
}

// Repository persists shipments and their history ledger.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Shipment, error)
	FindByTrackingToken(ctx context.Context, token string) (*Shipment, error)
	// FindByTrackingCode returns the non-deleted shipment of a client carrying code.
	FindByTrackingCode(ctx context.Context, clientID uuid.UUID, code string) (*Shipment, error)
	// FindByExternalShipmentID returns the non-deleted shipment polled under id.
	FindByExternalShipmentID(ctx context.Context, source Provider, id string) (*Shipment, error)
	// FindSaleWindow returns non-deleted shipments of clientRef sold within [from, to].
	FindSaleWindow(ctx context.Context, clientRef string, from, to time.Time) ([]*Shipment, error)
	ExistsSearchCode(ctx context.Context, code string) (bool, error)
	// ListOpenBySource returns non-deleted, non-terminal shipments of source.
	ListOpenBySource(ctx context.Context, source Provider) ([]*Shipment, error)
	List(ctx context.Context, filter Filter) ([]*Shipment, int64, error)
	// Create inserts s with its pending history. A dedup key collision
	// returns ErrDuplicateDedupKey.
	Create(ctx context.Context, s *Shipment) error
	// Save updates s under optimistic locking and appends pending history.
	Save(ctx context.Context, s *Shipment) error
	History(ctx context.Context, shipmentID uuid.UUID) ([]HistoryEntry, error)
}
