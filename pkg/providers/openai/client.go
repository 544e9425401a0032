package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// Client is the OpenAI provider adapter.
type Client struct {
	upstream *providers.UpstreamClient
}

// NewClient wraps the shared upstream client as an OpenAI adapter.
func NewClient(upstream *providers.UpstreamClient) *Client {
	return &Client{upstream: upstream}
}

// Name returns the configured provider name.
func (c *Client) Name() string {
	return c.upstream.Name()
}

// Complete performs a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Response, error) {
	wire := transformRequest(req)
	wire.Stream = false
	wire.StreamOptions = nil

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
	return transformResponse(&parsed), nil
}

// Stream starts a streaming chat completion.
func (c *Client) Stream(ctx context.Context, req *providers.CompletionRequest) (providers.StreamReader, error) {
	wire := transformRequest(req)
	wire.Stream = true
	wire.StreamOptions = &StreamOptions{IncludeUsage: true}

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
	return c.upstream.BaseURL() + "/chat/completions"
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.upstream.APIKey(),
	}
}
