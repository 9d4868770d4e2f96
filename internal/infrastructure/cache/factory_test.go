package cache

import (
	"context"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

func TestFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled redis uses in-process stores", func(t *testing.T) {
		f := NewFactory(config.RedisConfig{Enabled: false})

		locker, err := f.Locker(ctx)
		require.NoError(t, err)
		assert.IsType(t, &MemoryLocker{}, locker)

		states, err := f.OAuthStateStore(ctx)
		require.NoError(t, err)
		assert.IsType(t, &MemoryOAuthStateStore{}, states)
		assert.NoError(t, f.Close())
	})

	t.Run("reachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewFactory(config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr)})
		defer f.Close()

		locker, err := f.Locker(ctx)
		require.NoError(t, err)
		assert.IsType(t, &RedisLocker{}, locker)

		states, err := f.OAuthStateStore(ctx)
		require.NoError(t, err)
		assert.IsType(t, &RedisOAuthStateStore{}, states)
	})

	t.Run("unreachable redis falls back with a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		mr := miniredis.RunT(t)
		port := mustPort(t, mr)
		mr.Close()

		f := NewFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: port}, WithLogger(zap.New(core)))
		locker, err := f.Locker(ctx)
		require.NoError(t, err)
		assert.IsType(t, &MemoryLocker{}, locker)
		assert.Equal(t, 1, logs.FilterMessageSnippet("falling back").Len())
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port := mustPort(t, mr)
		mr.Close()

		f := NewFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: port}, WithInMemoryFallback(false))
		_, err := f.Locker(ctx)
		assert.Error(t, err)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
