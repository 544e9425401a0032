package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults, and validates a YAML configuration file.
//
// The loading sequence is:
//  1. Parse YAML over enabled-by-default toggles
//  2. Apply default values
//  3. Apply LUTHIEN_* environment variable overrides
//  4. Validate the final configuration
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse unmarshals and defaults YAML configuration without validating it.
func Parse(data []byte) (*Config, error) {
	// Boolean toggles that default to on are seeded before unmarshal;
	// the YAML decoder only touches keys present in the document.
	cfg := &Config{}
	cfg.Events.Enabled = true
	cfg.Telemetry.Metrics.Enabled = true

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables use
// the format LUTHIEN_SECTION_FIELD and take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LUTHIEN_PROXY_LISTEN_ADDRESS"); val != "" {
		cfg.Proxy.ListenAddress = val
	}
	if val := os.Getenv("LUTHIEN_PROXY_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Proxy.ShutdownTimeout = d
		}
	}

	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}

	if val := os.Getenv("LUTHIEN_POLICY_NAME"); val != "" {
		cfg.Policy.Name = val
	}
	if val := os.Getenv("LUTHIEN_POLICY_FILE"); val != "" {
		cfg.Policy.File = val
	}
	if val := os.Getenv("LUTHIEN_POLICY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.Watch = b
		}
	}

	if val := os.Getenv("LUTHIEN_STREAM_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Stream.IdleTimeout = d
		}
	}

	if val := os.Getenv("LUTHIEN_EVENTS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Events.Enabled = b
		}
	}
	if val := os.Getenv("LUTHIEN_EVENTS_STORE_PATH"); val != "" {
		cfg.Events.Store.Path = val
	}
	if val := os.Getenv("LUTHIEN_EVENTS_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Events.Retention.RetentionDays = i
		}
	}

	if val := os.Getenv("LUTHIEN_RATE_LIMIT_REQUESTS_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.RateLimit.RequestsPerMinute = i
		}
	}

	if val := os.Getenv("LUTHIEN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("LUTHIEN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("LUTHIEN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("LUTHIEN_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("LUTHIEN_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
}

// applyProviderEnvOverrides overrides one provider's settings. Variables
// follow the format LUTHIEN_PROVIDERS_<NAME>_<FIELD> with NAME uppercased.
func applyProviderEnvOverrides(cfg *Config, name string) {
	provider := cfg.Providers[name]
	prefix := fmt.Sprintf("LUTHIEN_PROVIDERS_%s_", strings.ToUpper(name))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		provider.APIKey = val
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
		}
	}

	cfg.Providers[name] = provider
}
