package infrastructure

import (
	"sync"
	"testing"
	"time"
)

// newClockedLimiter builds a limiter without the cleanup goroutine, driven
// by a manual clock the test advances.
func newClockedLimiter(start time.Time) (*IngestRateLimiter, *time.Time) {
	clock := start
	rl := &IngestRateLimiter{
		buckets: make(map[string]*senderBucket),
		now:     func() time.Time { return clock },
	}
	return rl, &clock
}

func TestAllow_ExhaustsCapacity(t *testing.T) {
	rl, _ := newClockedLimiter(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		if !rl.Allow("5511999999999", 10, time.Minute) {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	if rl.Allow("5511999999999", 10, time.Minute) {
		t.Error("message 11 should be denied")
	}
}

func TestAllow_RefillsToFullAfterInterval(t *testing.T) {
	rl, clock := newClockedLimiter(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		rl.Allow("sender", 10, time.Minute)
	}
	if rl.Allow("sender", 10, time.Minute) {
		t.Fatal("bucket should be empty")
	}

	// One second short of the window: still empty.
	*clock = clock.Add(59 * time.Second)
	if rl.Allow("sender", 10, time.Minute) {
		t.Error("bucket should not refill before the interval elapses")
	}

	// Window elapsed: full capacity again, not a gradual trickle.
	*clock = clock.Add(time.Second)
	for i := 0; i < 10; i++ {
		if !rl.Allow("sender", 10, time.Minute) {
			t.Fatalf("message %d after refill should be allowed", i+1)
		}
	}
	if rl.Allow("sender", 10, time.Minute) {
		t.Error("refilled bucket should hold exactly the capacity")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	rl, _ := newClockedLimiter(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		rl.Allow("sender-a", 3, time.Minute)
	}
	if rl.Allow("sender-a", 3, time.Minute) {
		t.Fatal("sender-a should be exhausted")
	}
	if !rl.Allow("sender-b", 3, time.Minute) {
		t.Error("sender-b should have its own full bucket")
	}
}

func TestAllow_ZeroCapacityDenies(t *testing.T) {
	rl, _ := newClockedLimiter(time.Now())

	if rl.Allow("sender", 0, time.Minute) {
		t.Error("capacity 0 should deny everything")
	}
	if rl.Allow("sender", -1, time.Minute) {
		t.Error("negative capacity should deny everything")
	}
	if rl.Remaining("sender", 0, time.Minute) != 0 {
		t.Error("capacity 0 should report no remaining tokens")
	}
}

func TestRemaining_DoesNotConsume(t *testing.T) {
	rl, _ := newClockedLimiter(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	if got := rl.Remaining("sender", 5, time.Minute); got != 5 {
		t.Fatalf("fresh bucket remaining = %d, want 5", got)
	}
	if got := rl.Remaining("sender", 5, time.Minute); got != 5 {
		t.Fatalf("remaining consumed a token: got %d, want 5", got)
	}

	rl.Allow("sender", 5, time.Minute)
	rl.Allow("sender", 5, time.Minute)
	if got := rl.Remaining("sender", 5, time.Minute); got != 3 {
		t.Fatalf("remaining after two sends = %d, want 3", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	rl := NewIngestRateLimiter()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("sender", 100, time.Minute) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d of 200 concurrent messages, want exactly 100", allowed)
	}
}
