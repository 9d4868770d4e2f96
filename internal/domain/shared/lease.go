package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseHeld is returned when another holder owns the lease.
var ErrLeaseHeld = errors.New("shared: lease is held by another holder")

// Lease is an acquired exclusive lease. Release is safe to call more than
// once and never releases a lease taken over by someone else after expiry.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived exclusive leases keyed by name. A lease that
// is never released expires after its TTL.
type Locker interface {
	// TryAcquire returns ErrLeaseHeld immediately when key is taken.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// AcquireWithin retries TryAcquire every poll interval until the lease is
// obtained, wait elapses or ctx is done.
func AcquireWithin(ctx context.Context, locker Locker, key string, ttl, wait, poll time.Duration) (Lease, error) {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		lease, err := locker.TryAcquire(ctx, key, ttl)
		if err == nil {
			return lease, nil
		}
		if !errors.Is(err, ErrLeaseHeld) || !time.Now().Before(deadline) {
			return nil, err
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
