package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

const defaultLeasePrefix = "tms:lease:"

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements shared.Locker with SET NX PX.
// Leases are shared by every instance connected to the same Redis.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLocker creates a locker on an existing client
func NewRedisLocker(client redis.UniversalClient, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLeasePrefix
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

// TryAcquire sets key to a fresh token when it does not exist
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (shared.Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	if !ok {
		return nil, shared.ErrLeaseHeld
	}
	return &redisLease{client: l.client, key: l.keyPrefix + key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

var _ shared.Locker = (*RedisLocker)(nil)
