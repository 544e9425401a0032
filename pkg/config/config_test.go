package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
providers:
  openai:
    base_url: https://api.openai.com/v1
    api_key: sk-test
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Proxy.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Policy.Name != DefaultPolicyName {
		t.Errorf("policy name = %q", cfg.Policy.Name)
	}
	if cfg.Stream.IdleTimeout != DefaultStreamIdleTimeout {
		t.Errorf("stream idle timeout = %v", cfg.Stream.IdleTimeout)
	}
	if !cfg.Events.Enabled {
		t.Error("events should default to enabled")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}

	openai := cfg.Providers["openai"]
	if openai.Kind != "openai" {
		t.Errorf("provider kind = %q, want inferred from name", openai.Kind)
	}
	if openai.Timeout != DefaultProviderTimeout {
		t.Errorf("provider timeout = %v", openai.Timeout)
	}
}

func TestLoadExplicitValuesSurviveDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
proxy:
  listen_address: 0.0.0.0:9000
providers:
  claude:
    kind: anthropic
    base_url: https://api.anthropic.com/v1
    api_key: sk-ant
    timeout: 120s
policy:
  name: tool_guard
  settings:
    deny_tools: [delete_everything]
events:
  enabled: false
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("listen address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Providers["claude"].Kind != "anthropic" {
		t.Errorf("kind = %q", cfg.Providers["claude"].Kind)
	}
	if cfg.Providers["claude"].Timeout != 120*time.Second {
		t.Errorf("timeout = %v", cfg.Providers["claude"].Timeout)
	}
	if cfg.Policy.Name != "tool_guard" {
		t.Errorf("policy name = %q", cfg.Policy.Name)
	}
	if cfg.Policy.Settings["deny_tools"] == nil {
		t.Error("policy settings not carried through")
	}
	if cfg.Events.Enabled {
		t.Error("events.enabled: false was ignored")
	}
}

func TestLoadRejectsMissingProviders(t *testing.T) {
	_, err := Load(writeConfig(t, "policy:\n  name: passthrough\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %T, want ValidationError", err)
	}
	if !strings.Contains(verr.Error(), "providers") {
		t.Errorf("error = %v", verr)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Providers = map[string]ProviderConfig{
		"bad": {Kind: "grpc", BaseURL: "not a url", Timeout: time.Second},
	}
	cfg.Policy.Watch = true
	cfg.Telemetry.Tracing.Enabled = true

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{
		"providers.bad.kind",
		"providers.bad.base_url",
		"policy.file",
		"telemetry.tracing.endpoint",
	} {
		if !fields[want] {
			t.Errorf("missing field error %q in %v", want, verr.Errors)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LUTHIEN_PROXY_LISTEN_ADDRESS", "127.0.0.1:9999")
	t.Setenv("LUTHIEN_PROVIDERS_OPENAI_API_KEY", "sk-from-env")
	t.Setenv("LUTHIEN_POLICY_NAME", "content_filter")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Proxy.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("listen address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Providers["openai"].APIKey)
	}
	if cfg.Policy.Name != "content_filter" {
		t.Errorf("policy name = %q", cfg.Policy.Name)
	}
}

func TestStreamEngineConversion(t *testing.T) {
	sc := StreamConfig{
		IdleTimeout:     5 * time.Second,
		ChannelCapacity: 8,
		SendTimeout:     time.Second,
	}
	engine := sc.StreamEngine()
	if engine.IdleTimeout != 5*time.Second || engine.ChannelCapacity != 8 || engine.SendTimeout != time.Second {
		t.Errorf("engine config = %+v", engine)
	}
}
