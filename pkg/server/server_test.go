package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/config"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Telemetry.Metrics.Enabled = true

	reg := registry.NewWithBuiltins()
	if err := reg.Activate("passthrough", nil); err != nil {
		t.Fatal(err)
	}

	return New(cfg, Dependencies{
		Providers:       handlers.NewProviderSet(),
		Registry:        reg,
		MetricsRegistry: prometheus.NewRegistry(),
	})
}

func TestHandlerRoutes(t *testing.T) {
	handler := newTestServer(t).Handler()

	cases := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", 200},
		{"/readyz", 503}, // no providers configured
		{"/v1/policy", 200},
		{"/metrics", 200},
		{"/nope", 404},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
		if rec.Code != tc.wantStatus {
			t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.wantStatus)
		}
	}
}

func TestPolicyRouteListsBuiltins(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/policy", nil))

	var payload struct {
		Active     string   `json:"active"`
		Registered []string `json:"registered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Active != "passthrough" {
		t.Errorf("active = %q", payload.Active)
	}
	if len(payload.Registered) < 4 {
		t.Errorf("registered = %v", payload.Registered)
	}
}

func TestHandlerSetsRequestID(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request ID header set")
	}
}
