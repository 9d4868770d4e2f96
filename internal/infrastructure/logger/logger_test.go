package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

func TestFromConfig(t *testing.T) {
	log := config.LogConfig{Level: "debug", Format: "console", Output: "stderr"}

	t.Run("development keeps the configured format", func(t *testing.T) {
		cfg := FromConfig(config.AppConfig{Env: "development"}, log)
		assert.Equal(t, Config{Level: "debug", Format: "console", Output: "stderr"}, cfg)
	})

	t.Run("production forces json", func(t *testing.T) {
		cfg := FromConfig(config.AppConfig{Env: "production"}, log)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "debug", cfg.Level)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.log")

	log := New(Config{Level: "info", Format: "json", Output: path})
	log.Debug("hidden")
	log.Info("shipment ingested")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shipment ingested", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	log := New(Config{Level: "error", Output: filepath.Join(t.TempDir(), "out.log")}, core)
	log.Info("bridged")

	// The extra core applies its own level, not the primary one.
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "bridged", recorded.All()[0].Message)
}
