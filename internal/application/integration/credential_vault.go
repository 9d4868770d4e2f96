package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// OAuthResolver returns the OAuth side of a provider.
type OAuthResolver interface {
	OAuth(provider shipment.Provider) (integration.OAuthProvider, error)
}

// CredentialVault hands out usable access tokens for client links,
// refreshing them shortly before expiry. A refreshed credential is stored
// before the new token is returned.
type CredentialVault struct {
	clients  integration.ClientRepository
	resolver OAuthResolver
	margin   time.Duration
	now      func() time.Time
	group    singleflight.Group
	logger   *zap.Logger
}

// VaultOption configures a CredentialVault.
type VaultOption func(*CredentialVault)

// WithRefreshMargin sets how close to expiry a token gets refreshed.
func WithRefreshMargin(margin time.Duration) VaultOption {
	return func(v *CredentialVault) {
		if margin > 0 {
			v.margin = margin
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) VaultOption {
	return func(v *CredentialVault) {
		v.now = now
	}
}

// NewCredentialVault creates a new credential vault
func NewCredentialVault(
	clients integration.ClientRepository,
	resolver OAuthResolver,
	logger *zap.Logger,
	opts ...VaultOption,
) *CredentialVault {
	v := &CredentialVault{
		clients:  clients,
		resolver: resolver,
		margin:   integration.DefaultRefreshMargin,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// GetValidAccessToken returns a token for the client's link to provider.
//
//   - a token expiring after now+margin, or with no expiry, is returned as-is
//   - otherwise a refresh token is exchanged and the result persisted first
//   - without a refresh token a present access token is returned degraded
//   - with neither, ErrNoCredential
func (v *CredentialVault) GetValidAccessToken(ctx context.Context, clientID uuid.UUID, provider shipment.Provider) (string, error) {
	return v.token(ctx, clientID, provider, false)
}

// Do runs fn with a valid token. When fn fails with a provider 401 the token
// is refreshed once and fn retried; a second 401 is ErrCredentialRejected.
func (v *CredentialVault) Do(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, fn func(ctx context.Context, token string) error) error {
	token, err := v.GetValidAccessToken(ctx, clientID, provider)
	if err != nil {
		return err
	}
	err = fn(ctx, token)
	if !integration.IsUnauthorized(err) {
		return err
	}

	v.logger.Warn("provider rejected access token, forcing refresh",
		zap.String("client_id", clientID.String()),
		zap.String("provider", provider.String()),
	)
	token, err = v.token(ctx, clientID, provider, true)
	if err != nil {
		return err
	}
	if err := fn(ctx, token); err != nil {
		if integration.IsUnauthorized(err) {
			return fmt.Errorf("%w: %w", integration.ErrCredentialRejected, err)
		}
		return err
	}
	return nil
}

func (v *CredentialVault) token(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, force bool) (string, error) {
	link, err := v.link(ctx, clientID, provider)
	if err != nil {
		return "", err
	}

	state := integration.ResolveTokenState(v.now(), link.Credential, v.margin)
	if state.Fresh && !force {
		return link.Credential.AccessToken, nil
	}
	if state.HasRefreshToken {
		return v.refresh(ctx, link)
	}
	if force {
		return "", integration.ErrCredentialRejected
	}
	if state.HasAccessToken {
		v.logger.Warn("access token near expiry and no refresh token stored, using it degraded",
			zap.String("client_id", clientID.String()),
			zap.String("provider", provider.String()),
			zap.Bool("expired", state.Expired),
		)
		return link.Credential.AccessToken, nil
	}
	return "", integration.ErrNoCredential
}

// refresh collapses concurrent refreshes of the same link into one exchange.
func (v *CredentialVault) refresh(ctx context.Context, link *integration.ProviderLink) (string, error) {
	key := link.ClientID.String() + ":" + link.Provider.String()
	result, err, shared := v.group.Do(key, func() (interface{}, error) {
		oauth, err := v.resolver.OAuth(link.Provider)
		if err != nil {
			return nil, err
		}
		ts, err := oauth.Refresh(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", integration.ErrRefreshFailed, err)
		}
		if ts.AccessToken == "" {
			return nil, fmt.Errorf("%w: empty access token", integration.ErrRefreshFailed)
		}
		cred := ts.Apply(link.Credential, v.now())
		if err := v.clients.UpdateCredential(ctx, link.ClientID, link.Provider, cred); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
		}
		v.logger.Info("access token refreshed",
			zap.String("client_id", link.ClientID.String()),
			zap.String("provider", link.Provider.String()),
		)
		return cred.AccessToken, nil
	})
	if err != nil {
		v.logger.Error("token refresh failed",
			zap.String("client_id", link.ClientID.String()),
			zap.String("provider", link.Provider.String()),
			zap.Error(err),
		)
		return "", err
	}
	if shared {
		v.logger.Debug("joined in-flight token refresh", zap.String("key", key))
	}
	return result.(string), nil
}

func (v *CredentialVault) link(ctx context.Context, clientID uuid.UUID, provider shipment.Provider) (*integration.ProviderLink, error) {
	client, err := v.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	link := client.Link(provider)
	if link == nil {
		return nil, integration.ErrLinkNotFound
	}
	if link.ClientID == uuid.Nil {
		link.ClientID = client.ID
	}
	return link, nil
}
