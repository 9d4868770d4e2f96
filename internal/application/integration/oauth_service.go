package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

const defaultStateTTL = 15 * time.Minute

// TaskSubmitter runs supervised background work.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

// ClientSyncer pulls a single client's orders from one provider.
type ClientSyncer interface {
	SyncClient(ctx context.Context, provider shipment.Provider, clientID uuid.UUID) error
}

// OAuthService drives the authorization flow that links a client to a
// provider.
type OAuthService struct {
	clients  integration.ClientRepository
	resolver OAuthResolver
	states   integration.OAuthStateStore
	tasks    TaskSubmitter
	syncer   ClientSyncer
	stateTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// OAuthOption configures an OAuthService.
type OAuthOption func(*OAuthService)

// WithStateTTL sets how long a pending authorization stays valid.
func WithStateTTL(ttl time.Duration) OAuthOption {
	return func(s *OAuthService) {
		if ttl > 0 {
			s.stateTTL = ttl
		}
	}
}

// NewOAuthService creates a new OAuth service. tasks and syncer may be nil,
// in which case no initial sync is scheduled after linking.
func NewOAuthService(
	clients integration.ClientRepository,
	resolver OAuthResolver,
	states integration.OAuthStateStore,
	tasks TaskSubmitter,
	syncer ClientSyncer,
	logger *zap.Logger,
	opts ...OAuthOption,
) *OAuthService {
	s := &OAuthService{
		clients:  clients,
		resolver: resolver,
		states:   states,
		tasks:    tasks,
		syncer:   syncer,
		stateTTL: defaultStateTTL,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizeURL builds the provider consent URL for a client and stores the
// pending state "<clientId>_<random>".
func (s *OAuthService) AuthorizeURL(ctx context.Context, provider shipment.Provider, clientID uuid.UUID, shop string) (string, error) {
	oauth, err := s.resolver.OAuth(provider)
	if err != nil {
		return "", err
	}
	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		return "", err
	}
	if provider == shipment.ProviderShopify && strings.TrimSpace(shop) == "" {
		return "", shared.NewValidationError("shop is required for %s", provider)
	}

	state, err := newState(clientID)
	if err != nil {
		return "", err
	}
	now := s.now()
	if err := s.states.Save(ctx, integration.OAuthState{
		State:     state,
		Provider:  provider,
		ClientID:  clientID,
		Shop:      strings.TrimSpace(shop),
		CreatedAt: now,
		ExpiresAt: now.Add(s.stateTTL),
	}); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	return oauth.AuthorizeURL(integration.AuthorizeRequest{State: state, Shop: strings.TrimSpace(shop)})
}

// HandleCallback completes an authorization: it checks the signature when
// the provider signs callbacks, consumes the state, exchanges the code and
// stores the tokens on the client's link. An initial sync is then queued.
func (s *OAuthService) HandleCallback(ctx context.Context, provider shipment.Provider, query url.Values) (*integration.ProviderLink, error) {
	oauth, err := s.resolver.OAuth(provider)
	if err != nil {
		return nil, err
	}

	if verifier, ok := oauth.(integration.CallbackVerifier); ok {
		if err := verifier.VerifyCallback(query); err != nil {
			s.logger.Warn("oauth callback signature rejected",
				zap.String("provider", provider.String()),
				zap.String("shop", query.Get("shop")),
				zap.Error(err),
			)
			return nil, integration.ErrInvalidSignature
		}
	}

	st, err := s.states.Consume(ctx, query.Get("state"))
	if err != nil || st.Provider != provider {
		return nil, integration.ErrInvalidOAuthState
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		return nil, integration.ErrMissingAuthCode
	}
	shop := strings.TrimSpace(query.Get("shop"))
	if shop == "" {
		shop = st.Shop
	}

	client, err := s.clients.FindByID(ctx, st.ClientID)
	if err != nil {
		return nil, err
	}

	ts, err := oauth.ExchangeCode(ctx, code, shop)
	if err != nil {
		s.logger.Error("authorization code exchange failed",
			zap.String("provider", provider.String()),
			zap.String("client_id", client.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	link := client.Link(provider)
	if link == nil {
		link = &integration.ProviderLink{ID: uuid.New(), ClientID: client.ID, Provider: provider}
	}
	link.Credential = ts.Apply(link.Credential, s.now())
	if ts.ExternalAccountID != "" {
		link.ExternalAccountID = ts.ExternalAccountID
	}
	if shop != "" {
		link.ShopDomain = shop
	}
	link.UpdatedAt = s.now()
	if err := s.clients.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to save provider link: %w", err)
	}

	s.logger.Info("client linked to provider",
		zap.String("provider", provider.String()),
		zap.String("client_id", client.ID.String()),
		zap.String("external_account_id", link.ExternalAccountID),
	)
	s.scheduleInitialSync(provider, client.ID)
	return link, nil
}

func (s *OAuthService) scheduleInitialSync(provider shipment.Provider, clientID uuid.UUID) {
	if s.tasks == nil || s.syncer == nil || provider.IsLiveTracked() {
		return
	}
	name := "initial-sync:" + provider.String() + ":" + clientID.String()
	err := s.tasks.Submit(name, func(ctx context.Context) error {
		return s.syncer.SyncClient(ctx, provider, clientID)
	})
	if err != nil {
		s.logger.Warn("initial sync not scheduled",
			zap.String("task", name),
			zap.Error(err),
		)
	}
}

// ClientIDFromState extracts the client id prefix of a state value.
func ClientIDFromState(state string) (uuid.UUID, error) {
	prefix, _, ok := strings.Cut(state, "_")
	if !ok {
		return uuid.Nil, errors.New("integration: malformed state")
	}
	return uuid.Parse(prefix)
}

func newState(clientID uuid.UUID) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("integration: generate oauth state: %w", err)
	}
	return clientID.String() + "_" + hex.EncodeToString(raw), nil
}
