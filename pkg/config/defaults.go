package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress     = "127.0.0.1:8787"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20

	DefaultProviderTimeout      = 300 * time.Second
	DefaultProviderMaxIdleConns = 32

	DefaultPolicyName       = "passthrough"
	DefaultDebounceInterval = 500 * time.Millisecond

	DefaultStreamIdleTimeout     = 30 * time.Second
	DefaultStreamChannelCapacity = 64
	DefaultStreamSendTimeout     = 10 * time.Second

	DefaultEventBufferSize = 1024

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"
)

// NewDefaultConfig returns a configuration with all defaults applied and no
// providers. Useful as a starting point for tests.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields. Explicit settings are never
// overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadHeaderTimeout == 0 {
		cfg.Proxy.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	for name, provider := range cfg.Providers {
		if provider.Kind == "" {
			provider.Kind = name
		}
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		if provider.MaxIdleConns == 0 {
			provider.MaxIdleConns = DefaultProviderMaxIdleConns
		}
		cfg.Providers[name] = provider
	}

	if cfg.Policy.Name == "" {
		cfg.Policy.Name = DefaultPolicyName
	}
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultDebounceInterval
	}

	if cfg.Stream.IdleTimeout == 0 {
		cfg.Stream.IdleTimeout = DefaultStreamIdleTimeout
	}
	if cfg.Stream.ChannelCapacity == 0 {
		cfg.Stream.ChannelCapacity = DefaultStreamChannelCapacity
	}
	if cfg.Stream.SendTimeout == 0 {
		cfg.Stream.SendTimeout = DefaultStreamSendTimeout
	}

	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = DefaultEventBufferSize
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
