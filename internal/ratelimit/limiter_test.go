package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(Config{Window: time.Minute, MaxRequests: 3})

	for i := 0; i < 3; i++ {
		if ok, _ := limiter.Allow(42); !ok {
			t.Errorf("request %d should be allowed", i)
		}
	}

	ok, retryAfter := limiter.Allow(42)
	if ok {
		t.Error("request over the limit should be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("unexpected retryAfter %v", retryAfter)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	limiter := NewLimiter(Config{Window: time.Minute, MaxRequests: 1}, WithNow(clock))

	limiter.Allow(42)
	if ok, _ := limiter.Allow(42); ok {
		t.Fatal("second request in window should be denied")
	}

	mu.Lock()
	now = now.Add(61 * time.Second)
	mu.Unlock()

	if ok, _ := limiter.Allow(42); !ok {
		t.Error("request after window reset should be allowed")
	}
}

func TestLimiter_PerUserWindows(t *testing.T) {
	limiter := NewLimiter(Config{Window: time.Minute, MaxRequests: 1})

	limiter.Allow(1)
	if ok, _ := limiter.Allow(2); !ok {
		t.Error("limits must be independent per user")
	}
}

func TestLimiter_PruneExpired(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	limiter := NewLimiter(Config{Window: time.Minute, MaxRequests: 5}, WithNow(clock))

	limiter.Allow(1)
	limiter.Allow(2)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	limiter.Allow(3)
	if got := limiter.Size(); got != 1 {
		t.Errorf("expected expired windows pruned, tracking %d users", got)
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := NewLimiter(Config{Window: time.Minute, MaxRequests: 1})

	limiter.Allow(42)
	limiter.Reset(42)

	if ok, _ := limiter.Allow(42); !ok {
		t.Error("request after reset should be allowed")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Window != time.Minute || cfg.MaxRequests != 30 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
