package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects all field errors found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every violation, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateStream(&cfg.Stream)...)
	errs = append(errs, validateEvents(&cfg.Events)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.requests_per_minute",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadHeaderTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.read_header_timeout",
			Message: "must be non-negative",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.shutdown_timeout",
			Message: "must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "must be non-negative",
		})
	}
	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider is required",
		})
		return errs
	}

	for name, provider := range providers {
		field := func(f string) string { return fmt.Sprintf("providers.%s.%s", name, f) }

		switch provider.Kind {
		case "openai", "anthropic":
		default:
			errs = append(errs, FieldError{
				Field:   field("kind"),
				Message: fmt.Sprintf("unknown provider kind %q (expected openai or anthropic)", provider.Kind),
			})
		}

		if provider.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: fmt.Sprintf("invalid URL %q", provider.BaseURL),
			})
		}

		if provider.Timeout <= 0 {
			errs = append(errs, FieldError{
				Field:   field("timeout"),
				Message: "must be positive",
			})
		}
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.Name == "" {
		errs = append(errs, FieldError{
			Field:   "policy.name",
			Message: "policy name is required",
		})
	}
	if cfg.Watch && cfg.File == "" {
		errs = append(errs, FieldError{
			Field:   "policy.file",
			Message: "watch requires a policy file",
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce_interval",
			Message: "must be non-negative",
		})
	}
	return errs
}

func validateStream(cfg *StreamConfig) []FieldError {
	var errs []FieldError

	if cfg.IdleTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "stream.idle_timeout",
			Message: "must be positive",
		})
	}
	if cfg.ChannelCapacity <= 0 {
		errs = append(errs, FieldError{
			Field:   "stream.channel_capacity",
			Message: "must be positive",
		})
	}
	if cfg.SendTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "stream.send_timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateEvents(cfg *EventsConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "events.buffer_size",
			Message: "must be positive",
		})
	}
	if cfg.Retention.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "events.retention.retention_days",
			Message: "must be non-negative",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (expected debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0 and 1",
		})
	}
	return errs
}
