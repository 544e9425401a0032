package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketTake(t *testing.T) {
	bucket := NewTokenBucket(3, 1)

	for i := 0; i < 3; i++ {
		if !bucket.Take(1) {
			t.Fatalf("take %d failed with a full bucket", i)
		}
	}
	if bucket.Take(1) {
		t.Error("take succeeded on an empty bucket")
	}
	if got := bucket.Remaining(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(2, 100)
	if !bucket.Take(2) {
		t.Fatal("initial take failed")
	}

	time.Sleep(30 * time.Millisecond)
	if !bucket.Take(1) {
		t.Error("take failed after refill window")
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	bucket := NewTokenBucket(2, 1000)
	time.Sleep(20 * time.Millisecond)

	if got := bucket.Remaining(); got > 2 {
		t.Errorf("remaining = %d exceeds capacity 2", got)
	}
}

func TestTokenBucketTimeUntilAvailable(t *testing.T) {
	bucket := NewTokenBucket(1, 1)
	bucket.Take(1)

	wait := bucket.TimeUntilAvailable(1)
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %s, want within (0, 1s]", wait)
	}
}

func TestLimiterPerKey(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerMinute: 60, Burst: 2})

	for i := 0; i < 2; i++ {
		if res := limiter.Allow("alice"); !res.Allowed {
			t.Fatalf("request %d for alice rejected", i)
		}
	}
	res := limiter.Allow("alice")
	if res.Allowed {
		t.Error("alice's burst not exhausted after capacity takes")
	}
	if res.RetryAfter <= 0 {
		t.Error("rejected result carries no retry-after")
	}

	// A different key has its own bucket.
	if res := limiter.Allow("bob"); !res.Allowed {
		t.Error("bob rejected by alice's bucket")
	}
}

func TestLimiterUnlimited(t *testing.T) {
	limiter := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		if !limiter.Allow("anyone").Allowed {
			t.Fatal("unlimited limiter rejected a request")
		}
	}
}

func TestLimiterReset(t *testing.T) {
	limiter := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	limiter.Allow("alice")
	if limiter.Allow("alice").Allowed {
		t.Fatal("burst not exhausted")
	}

	limiter.Reset()
	if !limiter.Allow("alice").Allowed {
		t.Error("reset did not refill alice's bucket")
	}
}
