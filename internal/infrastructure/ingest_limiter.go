package infrastructure

import (
	"sync"
	"time"
)

// IngestRateLimiter implements fixed-window token bucket rate limiting per
// sender key: the bucket refills to full capacity once the interval has
// elapsed, not gradually. State is process-local and rebuilt on restart;
// rate limiting here is best-effort, not durable.
type IngestRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*senderBucket
	now     func() time.Time // injectable clock
}

type senderBucket struct {
	tokens     int
	lastRefill time.Time
}

func NewIngestRateLimiter() *IngestRateLimiter {
	rl := &IngestRateLimiter{
		buckets: make(map[string]*senderBucket),
		now:     time.Now,
	}

	go rl.cleanup()

	return rl
}

// Allow consumes one token for key if available. capacity <= 0 always denies.
func (rl *IngestRateLimiter) Allow(key string, capacity int, refillInterval time.Duration) bool {
	if capacity <= 0 {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket := rl.refillLocked(key, capacity, refillInterval)
	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining reports the tokens left for key without consuming one.
func (rl *IngestRateLimiter) Remaining(key string, capacity int, refillInterval time.Duration) int {
	if capacity <= 0 {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.refillLocked(key, capacity, refillInterval).tokens
}

// refillLocked fetches the bucket for key, creating it full or resetting it
// to full capacity when the refill interval has elapsed. Caller holds mu.
func (rl *IngestRateLimiter) refillLocked(key string, capacity int, refillInterval time.Duration) *senderBucket {
	now := rl.now()

	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &senderBucket{tokens: capacity, lastRefill: now}
		rl.buckets[key] = bucket
		return bucket
	}

	if now.Sub(bucket.lastRefill) >= refillInterval {
		bucket.tokens = capacity
		bucket.lastRefill = now
	}
	return bucket
}

// cleanup removes stale buckets periodically.
func (rl *IngestRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for key, bucket := range rl.buckets {
			if now.Sub(bucket.lastRefill) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
