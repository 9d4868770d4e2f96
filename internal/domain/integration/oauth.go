package integration

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// AuthorizeRequest carries what an authorization URL is built from.
type AuthorizeRequest struct {
	State string
	// Shop is the store domain for providers authorized per shop.
	Shop string
}

// OAuthProvider is the token side of a provider's OAuth2 flow.
type OAuthProvider interface {
	Provider() shipment.Provider
	AuthorizeURL(req AuthorizeRequest) (string, error)
	// ExchangeCode trades an authorization code for tokens. shop is empty
	// for providers with a single token endpoint.
	ExchangeCode(ctx context.Context, code, shop string) (*TokenSet, error)
	// Refresh exchanges a refresh token for a new token set.
	Refresh(ctx context.Context, link *ProviderLink) (*TokenSet, error)
}

// CallbackVerifier is implemented by providers that sign their OAuth
// callback query.
type CallbackVerifier interface {
	VerifyCallback(query url.Values) error
}

// OAuthState is a pending authorization, consumed by its callback.
type OAuthState struct {
	State     string
	Provider  shipment.Provider
	ClientID  uuid.UUID
	Shop      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// OAuthStateStore keeps pending authorizations. Consume is single use.
type OAuthStateStore interface {
	Save(ctx context.Context, state OAuthState) error
	Consume(ctx context.Context, state string) (OAuthState, error)
}
