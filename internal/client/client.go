// Package client talks to the APAC open-data endpoints (station meteorology
// and CEMADEN hazard alerts) and maps their payloads into domain types.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/flood-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
)

// DefaultBaseURL is the public APAC data host.
const DefaultBaseURL = "http://dados.apac.pe.gov.br:41120"

// Upstream paths.
const (
	MeteorologyPath = "/meteorologia24h/"
	CEMADENPath     = "/cemaden/"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

var (
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrNotFound         = errors.New("endpoint not found")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrCircuitOpen      = errors.New("circuit open")
)

// Config configures an APACClient.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Clock stamps records with no upstream timestamp. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns the 30s timeout, three attempts and the public base URL.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        30 * time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
	}
}

// APACClient performs GETs against the APAC host with retry and per-call timeout.
// It is safe for concurrent use.
type APACClient struct {
	baseURL        *url.URL
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	clock          clockwork.Clock
}

// NewAPACClient validates cfg and returns a client.
func NewAPACClient(cfg Config) (*APACClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &APACClient{
		baseURL:        u,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		clock:          cfg.Clock,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// getJSON fetches path and decodes the JSON body into out. Transient failures
// are retried with exponential backoff. When breaker is non-nil each attempt
// goes through it and an open circuit ends the call with ErrCircuitOpen.
func (c *APACClient) getJSON(ctx context.Context, provider, path string, breaker *circuitbreaker.CircuitBreaker, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.WithLabelValues(provider).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var body []byte
		call := func() error {
			var err error
			body, err = c.callAPI(ctx, provider, path)
			return err
		}
		var err error
		if breaker != nil {
			err = breaker.Call(ctx, call)
			if errors.Is(err, circuitbreaker.ErrOpen) {
				return fmt.Errorf("%w: %s", ErrCircuitOpen, provider)
			}
		} else {
			err = call()
		}
		if err == nil {
			if err := decodeBody(body, out); err != nil {
				return err
			}
			return nil
		}

		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func decodeBody(body []byte, out interface{}) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrMalformedPayload, err)
	}
	return nil
}

func (c *APACClient) callAPI(ctx context.Context, provider, path string) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.ProviderDuration.WithLabelValues(provider, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	observability.ProviderDuration.WithLabelValues(provider, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "timeout")
}

func (c *APACClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if c.retryMaxDelay > 0 && delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *APACClient) buildRequest(ctx context.Context, path string) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", ErrNotFound, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
