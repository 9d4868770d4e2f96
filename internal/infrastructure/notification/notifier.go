// Package notification delivers recipient messages through an HTTP mail
// relay, or to the log when no relay is configured.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
)

// Notifier delivers a message to a recipient address.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// New returns the relay mailer when notifications are enabled and a log
// notifier otherwise.
func New(cfg config.NotificationConfig, log *zap.Logger) Notifier {
	if !cfg.Enabled {
		return NewLogNotifier(log)
	}
	return NewHTTPMailer(cfg, log)
}

// relayMessage is the body accepted by the mail relay.
type relayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// RelayError is a non-2xx answer of the mail relay.
type RelayError struct {
	StatusCode int
	Body       string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("notification: relay answered %d: %s", e.StatusCode, e.Body)
}

// HTTPMailer posts messages to a transactional mail relay.
type HTTPMailer struct {
	endpoint   string
	apiKey     string
	sender     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPMailer creates a new relay mailer
func NewHTTPMailer(cfg config.NotificationConfig, log *zap.Logger) *HTTPMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPMailer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		sender:   cfg.Sender,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log,
	}
}

// Send posts one message. Any non-2xx answer is a *RelayError.
func (m *HTTPMailer) Send(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(relayMessage{From: m.sender, To: recipient, Subject: subject, Text: body})
	if err != nil {
		return fmt.Errorf("notification: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notification: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RelayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.L(ctx, m.logger).Debug("Notification relayed", zap.String("recipient", maskAddress(recipient)))
	return nil
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log}
}

// Send logs the subject for the masked recipient. It never fails.
func (n *LogNotifier) Send(ctx context.Context, recipient, subject, _ string) error {
	logger.L(ctx, n.logger).Info("Notification not sent, relay disabled",
		zap.String("recipient", maskAddress(recipient)),
		zap.String("subject", subject),
	)
	return nil
}

// maskAddress keeps the first character of the local part and the domain.
func maskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
