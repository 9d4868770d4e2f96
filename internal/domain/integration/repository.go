package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// ClientRepository persists clients and their provider links.
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	// ListLinkedTo returns clients holding a link to provider, each with
	// its links loaded.
	ListLinkedTo(ctx context.Context, provider shipment.Provider) ([]*Client, error)
	Create(ctx context.Context, client *Client) error
	// SaveLink creates or replaces the client's link to link.Provider.
	SaveLink(ctx context.Context, link *ProviderLink) error
	// UpdateCredential stores cred on the link. It must be durable before
	// the refreshed token is handed to any caller.
	UpdateCredential(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, cred Credential) error
	UpdateLastSynced(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, at time.Time) error
}
