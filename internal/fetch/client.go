// SPDX-License-Identifier: Apache-2.0

// Package fetch performs the GET requests both anchor resolvers need, with
// retry on server errors and a circuit breaker per host.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

var (
	// ErrUnavailable covers network failures and 5xx responses.
	ErrUnavailable = errors.New("endpoint unavailable")
	// ErrRejected covers 4xx responses. They are not retried.
	ErrRejected = errors.New("request rejected")
	// ErrNotFound is a 404; it wraps ErrRejected.
	ErrNotFound = fmt.Errorf("%w: not found", ErrRejected)
)

// Config configures a Client.
type Config struct {
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
	UserAgent        string
	// MaxBodyBytes caps the size of a response body. Zero means 64 MiB.
	MaxBodyBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		RetryDelay:       200 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		UserAgent:        "evidence-mcp/1.0",
		MaxBodyBytes:     64 << 20,
	}
}

// Client fetches bodies over HTTP.
type Client struct {
	config   Config
	http     *http.Client
	retrier  retry.Retry[[]byte]
	mu       sync.RWMutex
	breakers map[string]circuitbreaker.CircuitBreaker[[]byte]
}

// New creates a client. A nil httpClient uses one with config.Timeout.
func New(config Config, httpClient *http.Client) *Client {
	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:   config,
		http:     httpClient,
		breakers: make(map[string]circuitbreaker.CircuitBreaker[[]byte]),
		retrier: retry.New[[]byte](retry.Config{
			MaxAttempts:        config.MaxRetries,
			InitialDelay:       config.RetryDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         2.0,
			NonRetryableErrors: []error{ErrRejected, context.Canceled},
		}),
	}
}

// Get returns the body of a successful GET to rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, accept string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	breaker := c.getBreaker(u.Host)

	return breaker.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, rawURL, accept)
		})
	})
}

func (c *Client) do(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(snippet))
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(snippet))
	}
}

func (c *Client) getBreaker(host string) circuitbreaker.CircuitBreaker[[]byte] {
	c.mu.RLock()
	breaker, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, ok = c.breakers[host]; ok {
		return breaker
	}

	threshold := c.config.BreakerThreshold
	breaker = circuitbreaker.New[[]byte](circuitbreaker.Config{
		MaxRequests: 10,
		Interval:    c.config.BreakerTimeout,
		Timeout:     c.config.BreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
		},
	})
	c.breakers[host] = breaker
	return breaker
}
