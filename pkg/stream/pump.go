package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
)

// outputPump owns the stream's outbound channel. It is the single place
// that writes to or closes the channel, which is what makes the
// close-exactly-once guarantee structural rather than conventional.
type outputPump struct {
	out         chan *providers.Chunk
	sendTimeout time.Duration
	metrics     *metrics.StreamMetrics

	closeOnce sync.Once
	sentAny   atomic.Bool
}

func newOutputPump(capacity int, sendTimeout time.Duration, m *metrics.StreamMetrics) *outputPump {
	return &outputPump{
		out:         make(chan *providers.Chunk, capacity),
		sendTimeout: sendTimeout,
		metrics:     m,
	}
}

// send places a chunk on the outbound channel, waiting at most the
// configured send timeout. A consumer that cannot drain within that window
// trips the backpressure breaker and the error is fatal for the stream.
func (p *outputPump) send(ctx context.Context, chunk *providers.Chunk) error {
	select {
	case p.out <- chunk:
		p.sentAny.Store(true)
		p.metrics.ChunkForwarded()
		return nil
	default:
	}

	timer := time.NewTimer(p.sendTimeout)
	defer timer.Stop()

	select {
	case p.out <- chunk:
		p.sentAny.Store(true)
		p.metrics.ChunkForwarded()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		p.metrics.BackpressureTrip()
		return &BackpressureError{Wait: p.sendTimeout}
	}
}

// close closes the outbound channel. Safe to call more than once; only the
// first call has effect.
func (p *outputPump) close() {
	p.closeOnce.Do(func() {
		close(p.out)
	})
}

// sentAnything reports whether at least one chunk was forwarded.
func (p *outputPump) sentAnything() bool {
	return p.sentAny.Load()
}
