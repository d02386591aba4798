package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock drives limiter time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	lim := New(cfg)
	clock := newFakeClock()
	lim.now = clock.Now
	return lim, clock
}

func TestCheck_ScenarioFromProfile(t *testing.T) {
	// requestsPerMinute=2, tokensPerMinute=100, window=60s, key "u1".
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 2,
		TokensPerMinute:   100,
		WindowSize:        time.Minute,
	})

	res := lim.Check("u1", 10)
	if !res.Allowed || res.Remaining != 1 {
		t.Fatalf("call 1: expected allowed remaining=1, got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}

	res = lim.Check("u1", 10)
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("call 2: expected allowed remaining=0, got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}

	res = lim.Check("u1", 10)
	if res.Allowed {
		t.Fatal("call 3: expected rejection")
	}
	if res.RetryAfter < 59*time.Second || res.RetryAfter > time.Minute {
		t.Errorf("expected retryAfter ~60s, got %s", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("expected remaining=0 on rejection, got %d", res.Remaining)
	}
}

func TestCheck_WindowAdmitsAgainAfterElapse(t *testing.T) {
	lim, clock := newTestLimiter(Config{
		RequestsPerMinute: 2,
		TokensPerMinute:   100_000,
		WindowSize:        time.Minute,
	})

	lim.Check("u1", 1)
	lim.Check("u1", 1)
	if res := lim.Check("u1", 1); res.Allowed {
		t.Fatal("expected rejection inside window")
	}

	clock.Advance(61 * time.Second)

	if res := lim.Check("u1", 1); !res.Allowed {
		t.Fatal("expected admission after window elapsed")
	}
}

func TestCheck_TokenBucketConservation(t *testing.T) {
	// Total cost up to capacity is admitted within one refill cycle;
	// the excess is rejected and remaining never goes negative.
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 100,
		TokensPerMinute:   600,
		BurstSize:         100,
		WindowSize:        time.Minute,
	})

	for i := 0; i < 4; i++ {
		if res := lim.Check("u1", 25); !res.Allowed {
			t.Fatalf("call %d: expected admission within capacity", i+1)
		}
	}

	res := lim.Check("u1", 25)
	if res.Allowed {
		t.Fatal("expected rejection once capacity is spent")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("expected positive retryAfter, got %s", res.RetryAfter)
	}
	if res.Remaining < 0 {
		t.Errorf("remaining must never be negative, got %d", res.Remaining)
	}
}

func TestCheck_BucketRefillsOverTime(t *testing.T) {
	lim, clock := newTestLimiter(Config{
		RequestsPerMinute: 100,
		TokensPerMinute:   60, // 1 token per second
		BurstSize:         10,
		WindowSize:        time.Minute,
	})

	if res := lim.Check("u1", 10); !res.Allowed {
		t.Fatal("expected full burst to be admitted")
	}
	res := lim.Check("u1", 5)
	if res.Allowed {
		t.Fatal("expected rejection on empty bucket")
	}
	// Deficit of 5 tokens at 1 token/s.
	if res.RetryAfter != 5*time.Second {
		t.Errorf("expected retryAfter 5s, got %s", res.RetryAfter)
	}

	clock.Advance(5 * time.Second)
	if res := lim.Check("u1", 5); !res.Allowed {
		t.Fatal("expected admission after refill")
	}
}

func TestCheck_RejectionDoesNotConsume(t *testing.T) {
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 1,
		TokensPerMinute:   100,
		WindowSize:        time.Minute,
	})

	lim.Check("u1", 1)
	lim.Check("u1", 1) // rejected by window

	st, ok := lim.Status("u1")
	if !ok {
		t.Fatal("expected status for u1")
	}
	if st.Requests != 1 {
		t.Errorf("rejected call must not join the window, got %d requests", st.Requests)
	}
}

func TestCheck_CostBelowOneRoundsUp(t *testing.T) {
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 10,
		TokensPerMinute:   60,
		BurstSize:         2,
		WindowSize:        time.Minute,
	})

	lim.Check("u1", 0)
	lim.Check("u1", 0)
	if res := lim.Check("u1", 0); res.Allowed {
		t.Error("expected zero-cost calls to consume one token each")
	}
}

func TestCheckWithOverrides(t *testing.T) {
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 1,
		TokensPerMinute:   100,
		WindowSize:        time.Minute,
	})

	ov := &Overrides{RequestsPerMinute: 3}
	lim.CheckWithOverrides("u1", 1, ov)
	lim.CheckWithOverrides("u1", 1, ov)
	if res := lim.CheckWithOverrides("u1", 1, ov); !res.Allowed {
		t.Error("expected override to raise the request limit")
	}
	if res := lim.CheckWithOverrides("u1", 1, ov); res.Allowed {
		t.Error("expected rejection past the overridden limit")
	}
}

func TestDryRun_DoesNotMutate(t *testing.T) {
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 2,
		TokensPerMinute:   100,
		WindowSize:        time.Minute,
	})

	for i := 0; i < 5; i++ {
		res := lim.DryRun("u1", 10)
		if !res.Allowed || res.Remaining != 1 {
			t.Fatalf("dry run %d: expected allowed remaining=1, got allowed=%v remaining=%d", i, res.Allowed, res.Remaining)
		}
	}

	if res := lim.Check("u1", 10); !res.Allowed || res.Remaining != 1 {
		t.Errorf("real check after dry runs should see fresh state, got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestStatus_UnknownKey(t *testing.T) {
	lim, _ := newTestLimiter(Config{})
	if _, ok := lim.Status("ghost"); ok {
		t.Error("expected no status for unknown key")
	}
}

func TestReset_ClearsKeyState(t *testing.T) {
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 1,
		TokensPerMinute:   100,
		WindowSize:        time.Minute,
	})

	lim.Check("u1", 1)
	if res := lim.Check("u1", 1); res.Allowed {
		t.Fatal("expected rejection before reset")
	}

	lim.Reset("u1")
	if res := lim.Check("u1", 1); !res.Allowed {
		t.Error("expected admission after reset")
	}

	lim.Check("u2", 1)
	lim.ResetAll()
	if _, ok := lim.Status("u2"); ok {
		t.Error("expected all keys cleared")
	}
}

func TestCleanup_EvictsIdleKeys(t *testing.T) {
	lim, clock := newTestLimiter(Config{
		RequestsPerMinute: 10,
		TokensPerMinute:   100,
		IdleTTL:           time.Minute,
	})

	lim.Check("idle", 1)
	clock.Advance(2 * time.Minute)
	lim.Check("active", 1)

	if evicted := lim.Cleanup(); evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := lim.Status("idle"); ok {
		t.Error("expected idle key to be evicted")
	}
	if _, ok := lim.Status("active"); !ok {
		t.Error("expected active key to survive")
	}
}

func TestOnLimit_FiresOnRejection(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 1,
		TokensPerMinute:   100,
		OnLimit: func(key string) {
			mu.Lock()
			hits = append(hits, key)
			mu.Unlock()
		},
	})

	lim.Check("u1", 1)
	lim.Check("u1", 1)
	lim.DryRun("u1", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 1 || hits[0] != "u1" {
		t.Errorf("expected one OnLimit hit for u1 (dry runs excluded), got %v", hits)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	lim := New(Config{CleanupInterval: 10 * time.Millisecond})

	lim.Start()
	lim.Start()
	lim.Stop()
	lim.Stop()

	lim.Start()
	lim.Stop()
}

func TestCheck_ConcurrentSingleWinner(t *testing.T) {
	// With exactly one token available, concurrent checks must admit
	// at most one request.
	lim, _ := newTestLimiter(Config{
		RequestsPerMinute: 100,
		TokensPerMinute:   60,
		BurstSize:         1,
		WindowSize:        time.Minute,
	})

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Check("u1", 1).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly 1 admission, got %d", admitted)
	}
}
