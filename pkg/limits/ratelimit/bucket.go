package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a classic token bucket: it allows bursts up to its capacity
// while sustaining a fixed average rate. Tokens accrue continuously at the
// refill rate; each admission consumes one or more tokens.
//
// TokenBucket is safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     int64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket that starts full, holds at most capacity
// tokens, and refills at refillRate tokens per second.
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Take attempts to consume n tokens, refilling first. It reports whether the
// tokens were available.
func (b *TokenBucket) Take(n int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Remaining returns the tokens currently available.
func (b *TokenBucket) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// Capacity returns the maximum bucket size.
func (b *TokenBucket) Capacity() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// TimeUntilAvailable returns how long until n tokens will be available,
// or zero if they already are.
func (b *TokenBucket) TimeUntilAvailable(n int64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= n {
		return 0
	}
	needed := float64(n-b.tokens) / b.refillRate
	return time.Duration(needed * float64(time.Second))
}

// Reset refills the bucket to capacity.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.capacity
	b.lastRefill = time.Now()
}

// refillLocked accrues tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (b *TokenBucket) refillLocked() {
	now := time.Now()
	add := int64(now.Sub(b.lastRefill).Seconds() * b.refillRate)
	if add <= 0 {
		return
	}
	b.tokens += add
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
