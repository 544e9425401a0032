package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// apiVersion is the anthropic-version header value the adapter speaks.
const apiVersion = "2023-06-01"

// Client is the Anthropic provider adapter.
type Client struct {
	upstream *providers.UpstreamClient
}

// NewClient wraps the shared upstream client as an Anthropic adapter.
func NewClient(upstream *providers.UpstreamClient) *Client {
	return &Client{upstream: upstream}
}

// Name returns the configured provider name.
func (c *Client) Name() string {
	return c.upstream.Name()
}

// Complete performs a non-streaming messages request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Response, error) {
	wire, err := transformRequest(req)
	if err != nil {
		return nil, err
	}
	wire.Stream = false

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.upstream.Do(ctx, "POST", c.url(), body, c.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.StreamError{
			Provider: c.Name(),
			Message:  "failed to read response",
			Cause:    err,
		}
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &providers.ParseError{
			Provider: c.Name(),
			Raw:      string(raw),
			Cause:    err,
		}
	}
	return transformResponse(&parsed)
}

// Stream starts a streaming messages request.
func (c *Client) Stream(ctx context.Context, req *providers.CompletionRequest) (providers.StreamReader, error) {
	wire, err := transformRequest(req)
	if err != nil {
		return nil, err
	}
	wire.Stream = true

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.upstream.Do(ctx, "POST", c.url(), body, c.headers())
	if err != nil {
		return nil, err
	}
	return newStreamReader(c.Name(), resp.Body), nil
}

func (c *Client) url() string {
	return c.upstream.BaseURL() + "/messages"
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.upstream.APIKey(),
		"anthropic-version": apiVersion,
	}
}
