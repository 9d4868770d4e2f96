package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
)

const defaultOAuthStatePrefix = "tms:oauth:state:"

// RedisOAuthStateStore keeps pending authorizations in Redis so any instance
// can serve the callback. GETDEL makes consumption single use.
type RedisOAuthStateStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewRedisOAuthStateStore creates a store on an existing client
func NewRedisOAuthStateStore(client redis.UniversalClient, keyPrefix string) *RedisOAuthStateStore {
	if keyPrefix == "" {
		keyPrefix = defaultOAuthStatePrefix
	}
	return &RedisOAuthStateStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// Save stores state until its ExpiresAt
func (s *RedisOAuthStateStore) Save(ctx context.Context, state integration.OAuthState) error {
	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("oauth state already expired")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// Consume returns and deletes the pending state
func (s *RedisOAuthStateStore) Consume(ctx context.Context, state string) (integration.OAuthState, error) {
	payload, err := s.client.GetDel(ctx, s.keyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return integration.OAuthState{}, integration.ErrInvalidOAuthState
	}
	if err != nil {
		return integration.OAuthState{}, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	var out integration.OAuthState
	if err := json.Unmarshal(payload, &out); err != nil {
		return integration.OAuthState{}, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	if !s.now().Before(out.ExpiresAt) {
		return integration.OAuthState{}, integration.ErrInvalidOAuthState
	}
	return out, nil
}

// MemoryOAuthStateStore keeps pending authorizations in process
type MemoryOAuthStateStore struct {
	mu    sync.Mutex
	store *gocache.Cache
	now   func() time.Time
}

// NewMemoryOAuthStateStore creates an in-process store. Expired states are
// purged every cleanupInterval.
func NewMemoryOAuthStateStore(cleanupInterval time.Duration) *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

// Save stores state until its ExpiresAt
func (s *MemoryOAuthStateStore) Save(_ context.Context, state integration.OAuthState) error {
	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("oauth state already expired")
	}
	s.store.Set(state.State, state, ttl)
	return nil
}

// Consume returns and deletes the pending state
func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string) (integration.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.store.Get(state)
	if !ok {
		return integration.OAuthState{}, integration.ErrInvalidOAuthState
	}
	s.store.Delete(state)

	out := v.(integration.OAuthState)
	if !s.now().Before(out.ExpiresAt) {
		return integration.OAuthState{}, integration.ErrInvalidOAuthState
	}
	return out, nil
}

var (
	_ integration.OAuthStateStore = (*RedisOAuthStateStore)(nil)
	_ integration.OAuthStateStore = (*MemoryOAuthStateStore)(nil)
)
