package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

type leaseEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker implements shared.Locker in process. Leases are not shared
// across instances, so it only serializes work within one deployment unit.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]leaseEntry
	now     func() time.Time
}

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]leaseEntry),
		now:     time.Now,
	}
}

// TryAcquire takes key unless a live lease holds it. Expired entries are
// replaced on the spot.
func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (shared.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expiresAt) {
		return nil, shared.ErrLeaseHeld
	}
	l.sweep(now)

	token := uuid.NewString()
	l.entries[key] = leaseEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token}, nil
}

// sweep drops expired entries; the caller holds mu.
func (l *MemoryLocker) sweep(now time.Time) {
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
		}
	}
}

func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.token == token {
		delete(l.entries, key)
	}
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.release(l.key, l.token)
	return nil
}

var _ shared.Locker = (*MemoryLocker)(nil)
