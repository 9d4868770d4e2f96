package integration

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// MockClientRepository is a mock implementation of integration.ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Client), args.Error(1)
}

func (m *MockClientRepository) ListLinkedTo(ctx context.Context, provider shipment.Provider) ([]*integration.Client, error) {
	args := m.Called(ctx, provider)
	return args.Get(0).([]*integration.Client), args.Error(1)
}

func (m *MockClientRepository) Create(ctx context.Context, client *integration.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) SaveLink(ctx context.Context, link *integration.ProviderLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockClientRepository) UpdateCredential(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, cred integration.Credential) error {
	args := m.Called(ctx, clientID, provider, cred)
	return args.Error(0)
}

func (m *MockClientRepository) UpdateLastSynced(ctx context.Context, clientID uuid.UUID, provider shipment.Provider, at time.Time) error {
	args := m.Called(ctx, clientID, provider, at)
	return args.Error(0)
}

// MockOAuthProvider is a mock implementation of integration.OAuthProvider
type MockOAuthProvider struct {
	mock.Mock
	provider shipment.Provider
}

func (m *MockOAuthProvider) Provider() shipment.Provider {
	return m.provider
}

func (m *MockOAuthProvider) AuthorizeURL(req integration.AuthorizeRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code, shop string) (*integration.TokenSet, error) {
	args := m.Called(ctx, code, shop)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenSet), args.Error(1)
}

func (m *MockOAuthProvider) Refresh(ctx context.Context, link *integration.ProviderLink) (*integration.TokenSet, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenSet), args.Error(1)
}

// signedOAuthProvider adds callback verification to the mock.
type signedOAuthProvider struct {
	*MockOAuthProvider
	verifyErr error
}

func (s *signedOAuthProvider) VerifyCallback(_ url.Values) error {
	return s.verifyErr
}

type staticResolver struct {
	providers map[shipment.Provider]integration.OAuthProvider
}

func (r staticResolver) OAuth(provider shipment.Provider) (integration.OAuthProvider, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, integration.ErrUnsupportedProvider
	}
	return p, nil
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]integration.OAuthState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{entries: map[string]integration.OAuthState{}}
}

func (s *memoryStateStore) Save(_ context.Context, st integration.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[st.State] = st
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (integration.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[state]
	if !ok {
		return integration.OAuthState{}, errors.New("state not found")
	}
	delete(s.entries, state)
	return st, nil
}

type recordingTasks struct {
	mu    sync.Mutex
	names []string
	fns   []func(ctx context.Context) error
}

func (r *recordingTasks) Submit(name string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.fns = append(r.fns, fn)
	return nil
}

type recordingSyncer struct {
	calls []uuid.UUID
}

func (r *recordingSyncer) SyncClient(_ context.Context, _ shipment.Provider, clientID uuid.UUID) error {
	r.calls = append(r.calls, clientID)
	return nil
}
