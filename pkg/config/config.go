package config

import (
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events/retention"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events/store"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/limits/ratelimit"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/stream"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/tracing"
)

// Config is the root configuration structure for the proxy. It covers the
// HTTP server, upstream providers, the active policy, stream engine tuning,
// event persistence, rate limiting, and telemetry.
type Config struct {
	// Proxy contains HTTP server configuration including listen address
	// and timeouts.
	Proxy ProxyConfig `yaml:"proxy"`

	// Providers contains configuration for upstream LLM providers.
	// Keys are provider names (e.g., "openai", "anthropic").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Policy selects and configures the active policy.
	Policy PolicyConfig `yaml:"policy"`

	// Stream contains tuning for the per-stream execution engine.
	Stream StreamConfig `yaml:"stream"`

	// Events contains configuration for event persistence and retention.
	Events EventsConfig `yaml:"events"`

	// RateLimit contains per-client request admission settings.
	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// Telemetry contains metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8787"
	ListenAddress string `yaml:"listen_address"`

	// ReadHeaderTimeout bounds reading of request headers. The request
	// body is not covered; streaming requests hold the connection open
	// for the whole generation.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle limit between requests.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// streams during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes caps the size of parsed request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ProviderConfig contains configuration for a single upstream provider.
type ProviderConfig struct {
	// Kind selects the wire adapter: "openai" or "anthropic".
	Kind string `yaml:"kind"`

	// BaseURL is the provider's API base URL.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key. Prefer setting it through the
	// LUTHIEN_PROVIDERS_<NAME>_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each upstream request. For streaming requests it
	// covers the whole body read, so it must exceed the longest expected
	// generation.
	// Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size.
	// Default: 32
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// PolicyConfig selects the active policy and its settings.
type PolicyConfig struct {
	// Name is the registered policy name (e.g., "passthrough",
	// "tool_guard", "content_filter", "rate_limit").
	// Default: "passthrough"
	Name string `yaml:"name"`

	// Settings is the policy's own configuration, passed verbatim to its
	// constructor.
	Settings map[string]any `yaml:"settings"`

	// File is an optional policy file to watch. When set together with
	// Watch, saves to the file re-activate the policy without dropping
	// in-flight streams.
	File string `yaml:"file"`

	// Watch enables hot reload of File.
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file change notifications.
	// Default: 500ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StreamConfig tunes the stream execution engine.
type StreamConfig struct {
	// IdleTimeout is the maximum inactivity window before a stream fails.
	// Default: 30s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ChannelCapacity is the outbound chunk buffer per stream.
	// Default: 64
	ChannelCapacity int `yaml:"channel_capacity"`

	// SendTimeout is the bounded wait on a full outbound buffer before
	// the backpressure breaker trips.
	// Default: 10s
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// EventsConfig contains configuration for event persistence.
type EventsConfig struct {
	// Enabled turns event persistence on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Store contains SQLite storage settings.
	Store store.Config `yaml:"store"`

	// BufferSize is the async sink's in-memory buffer. Events beyond it
	// are dropped rather than blocking streams.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// Retention controls scheduled pruning of old events.
	Retention retention.Config `yaml:"retention"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing settings.
	Tracing tracing.Config `yaml:"tracing"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// StreamEngine converts the YAML section into the engine's config type.
func (c StreamConfig) StreamEngine() stream.Config {
	return stream.Config{
		IdleTimeout:     c.IdleTimeout,
		ChannelCapacity: c.ChannelCapacity,
		SendTimeout:     c.SendTimeout,
	}
}
