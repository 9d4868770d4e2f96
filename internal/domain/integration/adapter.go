package integration

import (
	"context"
	"time"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// RawOrder is an order or shipment payload exactly as a provider returned it.
type RawOrder struct {
	Provider shipment.Provider
	// ID is the provider's identifier of the payload (order or shipment id).
	ID      string
	Payload []byte
}

// Adapter turns raw provider payloads into shipment drafts. Normalize never
// fails for missing non-essential fields; those become placeholders.
type Adapter interface {
	Provider() shipment.Provider
	Normalize(raw RawOrder, client *Client) (*shipment.Draft, error)
}

// OrderSource is an adapter that can list a linked store's recent orders.
type OrderSource interface {
	Adapter
	// FetchOrders returns orders created or updated since the given time.
	FetchOrders(ctx context.Context, link *ProviderLink, token string, since time.Time) ([]RawOrder, error)
	// ShippingMethod extracts the shipping method name used by link filters
	// without a full normalization.
	ShippingMethod(raw RawOrder) string
}

// LiveTracker is an adapter whose shipments can be fetched and polled by
// provider shipment id.
type LiveTracker interface {
	Adapter
	// FetchShipment resolves shipmentID to a payload rich enough to
	// normalize, walking the provider's fallback lookups when needed.
	FetchShipment(ctx context.Context, link *ProviderLink, token, shipmentID string) (RawOrder, error)
	// FetchStatus returns the canonical status of shipmentID.
	FetchStatus(ctx context.Context, link *ProviderLink, token, shipmentID string) (shipment.Status, error)
}

// AdapterRegistry resolves adapters by provider.
type AdapterRegistry interface {
	Adapter(provider shipment.Provider) (Adapter, error)
	OrderSource(provider shipment.Provider) (OrderSource, error)
	LiveTracker(provider shipment.Provider) (LiveTracker, error)
	OAuth(provider shipment.Provider) (OAuthProvider, error)
	// Providers lists every provider with a registered adapter.
	Providers() []shipment.Provider
}

// SyncStatus is the outcome of one ingestion or status sync pass.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusRunning SyncStatus = "RUNNING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// IsFinal reports whether the pass has ended.
func (s SyncStatus) IsFinal() bool {
	return s == SyncStatusSuccess || s == SyncStatusPartial || s == SyncStatusFailed
}

// SyncResultStatus classifies a pass from its counters.
func SyncResultStatus(total, failed int) SyncStatus {
	switch {
	case failed == 0:
		return SyncStatusSuccess
	case failed < total:
		return SyncStatusPartial
	default:
		return SyncStatusFailed
	}
}
