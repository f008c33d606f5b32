package eduapi

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterConsumesTokens(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("bucket exhausted, call should be rejected")
	}
	if got := rl.Tokens(); got != 0 {
		t.Errorf("Tokens() = %d, want 0", got)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(2, 20*time.Millisecond)

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !rl.Allow() {
		t.Error("token should have refilled")
	}
}

func TestRateLimiterCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(2, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if got := rl.Tokens(); got != 2 {
		t.Errorf("Tokens() = %d, want cap of 2", got)
	}
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}
