package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

func TestHTTPMailer_Send(t *testing.T) {
	var got relayMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(config.NotificationConfig{
		Enabled:  true,
		Endpoint: srv.URL,
		APIKey:   "relay-key",
		Sender:   "envios@example.com",
		Timeout:  time.Second,
	}, zap.NewNop())

	require.NoError(t, mailer.Send(context.Background(), "jane@example.com", "Your Acme order is on its way", "Hi Jane"))
	assert.Equal(t, "Bearer relay-key", auth)
	assert.Equal(t, relayMessage{
		From:    "envios@example.com",
		To:      "jane@example.com",
		Subject: "Your Acme order is on its way",
		Text:    "Hi Jane",
	}, got)
}

func TestHTTPMailer_RelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(config.NotificationConfig{Endpoint: srv.URL, Timeout: time.Second}, nil)
	err := mailer.Send(context.Background(), "jane@example.com", "s", "b")

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, http.StatusTooManyRequests, relayErr.StatusCode)
	assert.Equal(t, "quota exceeded", relayErr.Body)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), "jane@example.com", "Hello", "body"))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "j***@example.com", entries[0].ContextMap()["recipient"])
	assert.Equal(t, "Hello", entries[0].ContextMap()["subject"])
}

func TestNew(t *testing.T) {
	assert.IsType(t, &LogNotifier{}, New(config.NotificationConfig{}, nil))
	assert.IsType(t, &HTTPMailer{}, New(config.NotificationConfig{Enabled: true, Endpoint: "http://relay"}, nil))
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "j***@example.com", maskAddress("jane@example.com"))
	assert.Equal(t, "***", maskAddress("not-an-address"))
	assert.Equal(t, "***", maskAddress("@example.com"))
}
