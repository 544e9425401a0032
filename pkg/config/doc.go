// Package config defines the YAML configuration surface for the proxy and
// handles loading, defaulting, environment overrides, and validation.
//
// Configuration is loaded from a single YAML file. Defaults are applied
// before validation, so a minimal file that only names providers and a
// policy is a complete configuration. Environment variables with the
// LUTHIEN_ prefix override file values, which keeps API keys out of
// checked-in config files.
package config
