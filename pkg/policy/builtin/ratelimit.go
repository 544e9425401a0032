package builtin

import (
	"context"
	"fmt"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/limits/ratelimit"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// RateLimit throttles stream output with a per-stream token bucket. Each
// forwarded chunk consumes one token; a stream that outruns the bucket is
// terminated rather than stalled, since holding chunks back indefinitely
// would trip the idle and backpressure limits anyway.
//
// Settings:
//
//	chunks_per_second: sustained output rate (required, > 0)
//	burst:             burst capacity (default chunks_per_second)
type RateLimit struct {
	policy.Base

	chunksPerSecond int
	burst           int
}

// NewRateLimit builds a RateLimit from its settings.
func NewRateLimit(settings map[string]any) (policy.Policy, error) {
	rate, err := intValue(settings, "chunks_per_second", 0)
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("chunks_per_second must be positive, got %d", rate)
	}
	burst, err := intValue(settings, "burst", rate)
	if err != nil {
		return nil, err
	}
	return &RateLimit{chunksPerSecond: rate, burst: burst}, nil
}

// Name implements policy.Policy.
func (*RateLimit) Name() string { return "rate_limit" }

// NewState creates the stream's private token bucket.
func (p *RateLimit) NewState() (policy.State, error) {
	return ratelimit.NewTokenBucket(int64(p.burst), float64(p.chunksPerSecond)), nil
}

// OnChunkFinished forwards the chunk if the bucket admits it.
func (p *RateLimit) OnChunkFinished(ctx context.Context, sc policy.Context, st policy.State, chunk *providers.Chunk) error {
	bucket := st.(*ratelimit.TokenBucket)
	if !bucket.Take(1) {
		reason := fmt.Sprintf("stream output exceeded %d chunks/s (burst %d)", p.chunksPerSecond, p.burst)
		sc.Emit(ctx, "rate_limit.exceeded", reason, nil, events.SeverityWarning)
		return policy.Terminate(reason)
	}
	return sc.Send(ctx, chunk)
}
