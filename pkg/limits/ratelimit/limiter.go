package ratelimit

import (
	"sync"
	"time"
)

// Config holds per-key rate limits. Zero values mean no limit.
type Config struct {
	// RequestsPerMinute is the sustained request admission rate per key.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the maximum burst size. Defaults to RequestsPerMinute.
	Burst int `yaml:"burst"`
}

// Result describes one admission decision.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured burst capacity.
	Limit int64

	// Remaining is the number of admissions left in the current burst.
	Remaining int64

	// RetryAfter is the wait until the next admission would succeed.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter admits requests per client key using one token bucket per key.
// Keys are created lazily on first use.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewLimiter creates a keyed limiter. If cfg has no limits set, every
// admission succeeds.
func NewLimiter(cfg Config) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*TokenBucket),
	}
}

// Allow admits one request for the given key.
func (l *Limiter) Allow(key string) Result {
	if l.cfg.RequestsPerMinute <= 0 {
		return Result{Allowed: true}
	}

	bucket := l.bucket(key)
	if bucket.Take(1) {
		return Result{
			Allowed:   true,
			Limit:     bucket.Capacity(),
			Remaining: bucket.Remaining(),
		}
	}
	return Result{
		Allowed:    false,
		Limit:      bucket.Capacity(),
		Remaining:  bucket.Remaining(),
		RetryAfter: bucket.TimeUntilAvailable(1),
	}
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = NewTokenBucket(int64(l.cfg.Burst), float64(l.cfg.RequestsPerMinute)/60.0)
		l.buckets[key] = bucket
	}
	return bucket
}

// Reset refills every known bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, bucket := range l.buckets {
		bucket.Reset()
	}
}
