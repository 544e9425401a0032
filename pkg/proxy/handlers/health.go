package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a liveness handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler answers readiness probes: the proxy is ready once providers
// are configured and a policy is active.
type ReadyHandler struct {
	providers *ProviderSet
	registry  *registry.Registry
}

// NewReadyHandler creates a readiness handler.
func NewReadyHandler(set *ProviderSet, reg *registry.Registry) *ReadyHandler {
	return &ReadyHandler{providers: set, registry: reg}
}

// ServeHTTP implements http.Handler.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.registry.Active()
	ready := len(h.providers.Names()) > 0 && active != nil

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	payload := map[string]any{
		"status":    status,
		"providers": h.providers.Names(),
		"timestamp": time.Now().Unix(),
	}
	if active != nil {
		payload["policy"] = active.Name()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// PolicyHandler reports the active policy and the registered policy names.
type PolicyHandler struct {
	registry *registry.Registry
}

// NewPolicyHandler creates a policy introspection handler.
func NewPolicyHandler(reg *registry.Registry) *PolicyHandler {
	return &PolicyHandler{registry: reg}
}

// ServeHTTP implements http.Handler.
func (h *PolicyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]any{
		"registered": h.registry.Names(),
	}
	if active := h.registry.Active(); active != nil {
		payload["active"] = active.Name()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
