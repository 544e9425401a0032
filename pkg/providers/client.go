package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig contains configuration for an upstream HTTP client.
type ClientConfig struct {
	// Name is the provider identifier (e.g., "openai", "anthropic").
	Name string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// APIKey is the authentication key.
	APIKey string

	// Timeout is the request timeout. For streaming requests it bounds the
	// whole response body read, so it should comfortably exceed the longest
	// expected generation.
	Timeout time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool.
	IdleConnTimeout time.Duration
}

// UpstreamClient is the shared HTTP client for provider adapters. It owns
// connection pooling and error classification; adapters own wire formats.
//
// Streams are never retried: a retry after partial output risks re-emitting
// content the client already received.
type UpstreamClient struct {
	config ClientConfig
	client *http.Client
}

// NewUpstreamClient creates a client with connection pooling per the config.
func NewUpstreamClient(config ClientConfig) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &UpstreamClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Name returns the provider's configured name.
func (c *UpstreamClient) Name() string {
	return c.config.Name
}

// BaseURL returns the provider's configured base URL.
func (c *UpstreamClient) BaseURL() string {
	return c.config.BaseURL
}

// APIKey returns the provider's configured API key.
func (c *UpstreamClient) APIKey() string {
	return c.config.APIKey
}

// Do performs an HTTP request against the upstream. Non-2xx responses are
// drained, closed, and returned as UpstreamError; 2xx responses are returned
// with the body open (the caller owns closing it, which matters for SSE
// streams).
func (c *UpstreamClient) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{
			Provider: c.config.Name,
			Message:  "request failed",
			Cause:    err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded prefix of the error body for diagnostics.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &UpstreamError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
		}
	}

	return resp, nil
}
