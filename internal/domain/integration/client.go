package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// Client is a merchant whose orders the operator delivers.
type Client struct {
	ID          uuid.UUID
	Code        string
	Name        string
	PriceListID *uuid.UUID
	Links       []ProviderLink
}

// Reference is the client string stored on shipments and compared by the
// fuzzy dedup path, e.g. "C1 - Acme".
func (c *Client) Reference() string {
	return strings.TrimSpace(c.Code) + " - " + strings.TrimSpace(c.Name)
}

// Link returns the client's link to provider, or nil.
func (c *Client) Link(provider shipment.Provider) *ProviderLink {
	for i := range c.Links {
		if c.Links[i].Provider == provider {
			return &c.Links[i]
		}
	}
	return nil
}

// ProviderLink is a client's authorized account on one provider.
type ProviderLink struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	Provider          shipment.Provider
	ExternalAccountID string
	// ShopDomain is the store host for providers addressed per shop
	// (e.g. "acme.myshopify.com") or the account name for VTEX.
	ShopDomain string
	Credential Credential
	// ShippingMethodFilter limits ingestion to orders whose shipping method
	// starts with this text, case-insensitively. Empty accepts every order.
	ShippingMethodFilter string
	LastSyncedAt         *time.Time
	UpdatedAt            time.Time
}

// AcceptsShippingMethod reports whether an order shipped with method passes
// the link's filter.
func (l *ProviderLink) AcceptsShippingMethod(method string) bool {
	filter := strings.ToLower(strings.TrimSpace(l.ShippingMethodFilter))
	if filter == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(method)), filter)
}

// SyncSince returns where the next ingestion pass should start: the last
// successful sync minus lookback, or now minus initial when never synced.
func (l *ProviderLink) SyncSince(now time.Time, lookback, initial time.Duration) time.Time {
	if l.LastSyncedAt == nil || l.LastSyncedAt.IsZero() {
		return now.Add(-initial)
	}
	return l.LastSyncedAt.Add(-lookback)
}
