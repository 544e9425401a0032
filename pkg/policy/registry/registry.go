package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/builtin"
)

// Constructor builds a policy instance from its configured settings.
type Constructor func(settings map[string]any) (policy.Policy, error)

// Registry maps policy names to constructors and tracks the active policy.
// Register and Activate may be called concurrently with Active.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor

	active atomic.Pointer[policy.Policy]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// NewWithBuiltins creates a registry preloaded with the bundled policies.
func NewWithBuiltins() *Registry {
	r := New()
	r.Register("passthrough", builtin.NewPassthrough)
	r.Register("tool_guard", builtin.NewToolGuard)
	r.Register("content_filter", builtin.NewContentFilter)
	r.Register("rate_limit", builtin.NewRateLimit)
	return r
}

// Register adds a constructor under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Names returns the registered policy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs a policy instance by name without activating it.
func (r *Registry) Build(name string, settings map[string]any) (policy.Policy, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown policy %q", name)
	}

	pol, err := ctor(settings)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", name, err)
	}
	return pol, nil
}

// Activate builds the named policy and makes it the active one. On error
// the previously active policy stays in place.
func (r *Registry) Activate(name string, settings map[string]any) error {
	pol, err := r.Build(name, settings)
	if err != nil {
		return err
	}
	r.active.Store(&pol)
	return nil
}

// Active returns the currently active policy, or nil if none has been
// activated yet.
func (r *Registry) Active() policy.Policy {
	if p := r.active.Load(); p != nil {
		return *p
	}
	return nil
}
