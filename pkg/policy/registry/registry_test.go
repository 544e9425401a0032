package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
)

func TestRegistryBuildUnknown(t *testing.T) {
	r := New()
	if _, err := r.Build("nope", nil); err == nil {
		t.Fatal("unknown policy built successfully")
	}
}

func TestRegistryBuiltinsRegistered(t *testing.T) {
	r := NewWithBuiltins()
	want := []string{"content_filter", "passthrough", "rate_limit", "tool_guard"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryActivate(t *testing.T) {
	r := NewWithBuiltins()
	if r.Active() != nil {
		t.Fatal("fresh registry has an active policy")
	}

	if err := r.Activate("passthrough", nil); err != nil {
		t.Fatalf("activate passthrough: %v", err)
	}
	if got := r.Active().Name(); got != "passthrough" {
		t.Errorf("active = %q, want passthrough", got)
	}
}

func TestRegistryActivateFailureKeepsPrevious(t *testing.T) {
	r := NewWithBuiltins()
	if err := r.Activate("passthrough", nil); err != nil {
		t.Fatal(err)
	}

	// rate_limit requires chunks_per_second; activation must fail and the
	// previous policy must survive.
	if err := r.Activate("rate_limit", nil); err == nil {
		t.Fatal("invalid settings activated")
	}
	if got := r.Active().Name(); got != "passthrough" {
		t.Errorf("active = %q after failed activation, want passthrough", got)
	}
}

func TestRegistryActivateLeavesCapturedInstance(t *testing.T) {
	r := NewWithBuiltins()
	if err := r.Activate("passthrough", nil); err != nil {
		t.Fatal(err)
	}
	captured := r.Active()

	// A pipeline captures the active policy at request start; switching the
	// active policy must not reach into instances already handed out.
	if err := r.Activate("tool_guard", map[string]any{"deny_tools": []any{"rm"}}); err != nil {
		t.Fatalf("activate tool_guard: %v", err)
	}
	if got := r.Active().Name(); got != "tool_guard" {
		t.Errorf("active = %q, want tool_guard", got)
	}
	if got := captured.Name(); got != "passthrough" {
		t.Errorf("captured instance = %q after swap, want passthrough", got)
	}
}

func TestRegistryCustomConstructor(t *testing.T) {
	r := New()
	r.Register("custom", func(map[string]any) (policy.Policy, error) {
		return namedPolicy{}, nil
	})
	pol, err := r.Build("custom", nil)
	if err != nil {
		t.Fatal(err)
	}
	if pol.Name() != "custom" {
		t.Errorf("name = %q", pol.Name())
	}
}

type namedPolicy struct{ policy.Base }

func (namedPolicy) Name() string { return "custom" }

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luthien.yaml")
	if err := os.WriteFile(path, []byte("policy: passthrough\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	go func() {
		_ = w.Watch(ctx, func() error {
			reloaded <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("policy: tool_guard\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luthien.yaml")
	if err := os.WriteFile(path, []byte("policy: passthrough\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	go func() {
		_ = w.Watch(ctx, func() error {
			reloaded <- struct{}{}
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
