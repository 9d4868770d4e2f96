package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

const connectTimeout = 5 * time.Second

// Factory builds the coordination stores: Redis when configured and
// reachable, in-process otherwise.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	client                redis.UniversalClient
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-process stores
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient uses an existing Redis client instead of dialing one
func WithClient(client redis.UniversalClient) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Connect dials Redis once. A nil client with a nil error means the
// in-process fallback is in effect.
func (f *Factory) Connect(ctx context.Context) (redis.UniversalClient, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis is disabled and in-memory fallback is not allowed")
		}
		f.logger.Info("Redis disabled, using in-process leases and OAuth state")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-process leases. "+
			"Concurrent instances will not exclude each other.",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Error(err),
		)
		return nil, nil
	}

	f.logger.Info("Connected to Redis", zap.String("addr", f.redisConfig.Addr()))
	f.client = client
	return client, nil
}

// Locker returns the lease store
func (f *Factory) Locker(ctx context.Context) (shared.Locker, error) {
	client, err := f.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewMemoryLocker(), nil
	}
	return NewRedisLocker(client, ""), nil
}

// OAuthStateStore returns the pending authorization store
func (f *Factory) OAuthStateStore(ctx context.Context) (integration.OAuthStateStore, error) {
	client, err := f.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewMemoryOAuthStateStore(time.Minute), nil
	}
	return NewRedisOAuthStateStore(client, ""), nil
}

// Close releases the Redis connection, if any
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
