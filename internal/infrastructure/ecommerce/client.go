package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

// maxResponseSize is the maximum accepted response body from any provider (10MB)
const maxResponseSize = 10 * 1024 * 1024

const userAgent = "mvgtms (+https://github.com/mgastron/mvgtms-sub000)"

// apiClient performs rate limited, size capped calls to one provider and
// turns non-2xx answers into integration.ExternalAPIError.
type apiClient struct {
	provider   shipment.Provider
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newAPIClient(provider shipment.Provider, cfg config.ProviderConfig, logger *zap.Logger) *apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiClient{
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return provider.String() + " " + r.Method
				}),
			),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("provider", provider.String())),
	}
}

// do sends req and returns the body of a 2xx answer.
func (c *apiClient) do(req *http.Request) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, &integration.ExternalAPIError{Provider: c.provider, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &integration.ExternalAPIError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, nil, &integration.ExternalAPIError{Provider: c.provider, StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxResponseSize {
		return nil, nil, &integration.ExternalAPIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", maxResponseSize),
		}
	}

	c.logger.Debug("provider call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.Header, &integration.ExternalAPIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, resp.Header, nil
}

// getJSON issues a GET and decodes the answer into out.
func (c *apiClient) getJSON(ctx context.Context, rawURL string, headers http.Header, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.provider, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	body, respHeaders, err := c.do(req)
	if err != nil {
		return respHeaders, err
	}
	if out == nil {
		return respHeaders, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return respHeaders, fmt.Errorf("%w: %s: %v", integration.ErrMalformedPayload, c.provider, err)
	}
	return respHeaders, nil
}

// getRaw issues a GET and returns the body untouched.
func (c *apiClient) getRaw(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.provider, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	body, _, err := c.do(req)
	return body, err
}

// postForm posts an url-encoded form and decodes the answer into out.
func (c *apiClient) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, out)
}

// postJSON posts payload as JSON and decodes the answer into out.
func (c *apiClient) postJSON(ctx context.Context, rawURL string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", c.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *apiClient) send(req *http.Request, out any) error {
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrMalformedPayload, c.provider, err)
	}
	return nil
}
