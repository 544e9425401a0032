package builtin

import (
	"context"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// Passthrough forwards every chunk unchanged. It is the identity policy:
// the proxy behaves as a transparent relay while still exercising the full
// engine, so it doubles as the baseline for debugging policy issues.
type Passthrough struct {
	policy.Base
}

// NewPassthrough creates the identity policy. It accepts no settings.
func NewPassthrough(_ map[string]any) (policy.Policy, error) {
	return &Passthrough{}, nil
}

// Name implements policy.Policy.
func (*Passthrough) Name() string { return "passthrough" }

// OnChunkFinished forwards the chunk after all inspection hooks have run.
func (*Passthrough) OnChunkFinished(ctx context.Context, sc policy.Context, _ policy.State, chunk *providers.Chunk) error {
	return sc.Send(ctx, chunk)
}
