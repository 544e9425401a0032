package handlers

import (
	"fmt"
	"strings"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// modelPrefixes maps model name prefixes to provider kinds.
var modelPrefixes = map[string]string{
	"gpt-":    "openai",
	"o1":      "openai",
	"o3":      "openai",
	"o4":      "openai",
	"chatgpt": "openai",
	"claude-": "anthropic",
}

// ProviderSet holds the configured upstream adapters and routes requests to
// them by model name.
type ProviderSet struct {
	byName map[string]providers.Provider
	kinds  map[string]string
	order  []string
}

// NewProviderSet creates an empty provider set.
func NewProviderSet() *ProviderSet {
	return &ProviderSet{
		byName: make(map[string]providers.Provider),
		kinds:  make(map[string]string),
	}
}

// Add registers an adapter under a name with its wire kind ("openai" or
// "anthropic"). Registration order decides the fallback provider.
func (s *ProviderSet) Add(name, kind string, p providers.Provider) {
	if _, exists := s.byName[name]; !exists {
		s.order = append(s.order, name)
	}
	s.byName[name] = p
	s.kinds[name] = kind
}

// Names returns the provider names in registration order.
func (s *ProviderSet) Names() []string {
	return append([]string(nil), s.order...)
}

// ForModel picks the adapter for a model name. Known model prefixes route
// to the matching provider kind; anything else falls back to the first
// registered provider.
func (s *ProviderSet) ForModel(model string) (providers.Provider, error) {
	if len(s.order) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	for prefix, kind := range modelPrefixes {
		if !strings.HasPrefix(model, prefix) {
			continue
		}
		for _, name := range s.order {
			if s.kinds[name] == kind {
				return s.byName[name], nil
			}
		}
	}

	return s.byName[s.order[0]], nil
}
