// Package httpclient calls ToolHub admin APIs over HTTP. Requests are
// retried on network errors and 5xx responses and pass through a circuit
// breaker so a failing service is not hammered by scheduled jobs.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config holds HTTP client configuration.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Breaker      BreakerConfig
}

// DefaultConfig returns defaults suited to long-running admin calls.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Timeout:      5 * time.Minute,
		MaxRetries:   2,
		RetryWaitMin: time.Second,
		RetryWaitMax: 5 * time.Second,
		Breaker:      DefaultBreakerConfig("scoring-admin"),
	}
}

// Client sends JSON requests and unwraps the {data, error} envelope.
type Client struct {
	httpClient *http.Client
	cfg        Config
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		breaker:    newBreaker(cfg.Breaker, logger),
		logger:     logger,
	}
}

// Call sends method path with body encoded as JSON (nil for none) and
// decodes the response envelope's data into out (nil to discard).
// Non-2xx responses are returned as *apperrors.AppError where possible.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, method, c.cfg.BaseURL+path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s %s: %w", method, path, ErrCircuitOpen)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// doWithRetry returns the envelope's data member on success.
func (c *Client) doWithRetry(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if wait > c.cfg.RetryWaitMax {
				wait = c.cfg.RetryWaitMax
			}
			c.logger.WarnContext(ctx, "retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := c.do(ctx, method, url, payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp.StatusCode, raw)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode response envelope: %w", err)
		}
	}
	return env.Data, nil
}

// isRetryable reports network failures and 5xx responses, except 501.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500 && statusErr.Status != http.StatusNotImplemented
	}
	return false
}
