package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire is refused until release", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		locker := NewRedisLocker(client, "")

		lease, err := locker.TryAcquire(ctx, "ingest:C01", time.Minute)
		require.NoError(t, err)

		_, err = locker.TryAcquire(ctx, "ingest:C01", time.Minute)
		assert.ErrorIs(t, err, shared.ErrLeaseHeld)

		require.NoError(t, lease.Release(ctx))
		require.NoError(t, lease.Release(ctx))

		again, err := locker.TryAcquire(ctx, "ingest:C01", time.Minute)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("expired lease is not released by its old holder", func(t *testing.T) {
		mr, client := newMiniredisClient(t)
		locker := NewRedisLocker(client, "test:")

		old, err := locker.TryAcquire(ctx, "k", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		current, err := locker.TryAcquire(ctx, "k", time.Minute)
		require.NoError(t, err)

		require.NoError(t, old.Release(ctx))
		assert.True(t, mr.Exists("test:k"))

		require.NoError(t, current.Release(ctx))
		assert.False(t, mr.Exists("test:k"))
	})

	t.Run("ttl is set", func(t *testing.T) {
		mr, client := newMiniredisClient(t)
		locker := NewRedisLocker(client, "")

		_, err := locker.TryAcquire(ctx, "k", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, mr.TTL(defaultLeasePrefix+"k"))
	})

	t.Run("redis failure surfaces", func(t *testing.T) {
		mr, client := newMiniredisClient(t)
		mr.Close()

		_, err := NewRedisLocker(client, "").TryAcquire(ctx, "k", time.Second)
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrLeaseHeld)
	})
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	locker := NewMemoryLocker()
	locker.now = func() time.Time { return now }

	lease, err := locker.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryAcquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLeaseHeld)

	other, err := locker.TryAcquire(ctx, "other", time.Minute)
	require.NoError(t, err, "keys are independent")
	require.NoError(t, other.Release(ctx))

	now = now.Add(2 * time.Minute)
	taken, err := locker.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lease is replaced")

	require.NoError(t, lease.Release(ctx))
	_, err = locker.TryAcquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLeaseHeld, "stale holder must not free the new lease")

	require.NoError(t, taken.Release(ctx))
	_, err = locker.TryAcquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestAcquireWithin_MemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = lease.Release(ctx)
	}()

	got, err := shared.AcquireWithin(ctx, locker, "k", time.Minute, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, got.Release(ctx))
}
