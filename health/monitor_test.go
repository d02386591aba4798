package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/llmguard/errors"
	"github.com/kbukum/llmguard/provider"
)

// fakeProber returns scripted results and counts probes per provider.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]provider.ProbeResult
	calls   map[string]int
	block   chan struct{} // when set, Probe waits for it or ctx
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		results: make(map[string]provider.ProbeResult),
		calls:   make(map[string]int),
	}
}

func (p *fakeProber) set(name string, r provider.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[name] = r
}

func (p *fakeProber) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *fakeProber) Probe(ctx context.Context, name string) provider.ProbeResult {
	p.mu.Lock()
	p.calls[name]++
	r, ok := p.results[name]
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return provider.ProbeResult{Success: false, Err: ctx.Err()}
		}
	}
	if !ok {
		return provider.ProbeResult{Success: true, Latency: 10 * time.Millisecond}
	}
	return r
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *provider.Registry, *fakeProber) {
	t.Helper()
	reg := provider.NewRegistry()
	for _, c := range []provider.Config{
		{Name: "primary", Role: provider.RolePrimary, Model: "m1", Endpoint: "https://a.example.com"},
		{Name: "fallback", Role: provider.RoleFallback, Model: "m2", Endpoint: "https://b.example.com"},
	} {
		if _, err := reg.Register(c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	prober := newFakeProber()
	return NewMonitor(reg, prober, cfg), reg, prober
}

func TestCheck_ClassifiesByLatency(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{
		DegradedThreshold:  2 * time.Second,
		UnhealthyThreshold: 5 * time.Second,
	})

	cases := []struct {
		latency time.Duration
		want    provider.Status
	}{
		{500 * time.Millisecond, provider.StatusHealthy},
		{3 * time.Second, provider.StatusDegraded},
		{6 * time.Second, provider.StatusUnhealthy},
	}
	for _, c := range cases {
		prober.set("primary", provider.ProbeResult{Success: true, Latency: c.latency})
		res, err := mon.ForceCheck(context.Background(), "primary")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != c.want {
			t.Errorf("latency %s: expected %s, got %s", c.latency, c.want, res.Status)
		}
	}
}

func TestCheck_ProbeFailureIsUnhealthyData(t *testing.T) {
	mon, reg, prober := newTestMonitor(t, Config{})
	prober.set("primary", provider.ProbeResult{Success: false, Err: fmt.Errorf("connection refused")})

	res, err := mon.ForceCheck(context.Background(), "primary")
	if err != nil {
		t.Fatalf("probe failures must not surface as errors, got %v", err)
	}
	if res.Status != provider.StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", res.Status)
	}
	if res.Err == nil {
		t.Error("expected failure carried in result")
	}

	rec, _ := reg.Get("primary")
	if rec.ConsecutiveFailures() != 1 {
		t.Errorf("expected failure streak on the record, got %d", rec.ConsecutiveFailures())
	}
}

func TestCheck_UsesCacheWithinTTL(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{CacheTTL: 30 * time.Second})

	mon.Check(context.Background(), "primary")
	mon.Check(context.Background(), "primary")
	mon.Check(context.Background(), "primary")

	if n := prober.count("primary"); n != 1 {
		t.Errorf("expected 1 probe with fresh cache, got %d", n)
	}
}

func TestCheck_ProbesWhenCacheExpires(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{CacheTTL: 30 * time.Second})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	mon.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	mon.Check(context.Background(), "primary")
	mu.Lock()
	clock = clock.Add(31 * time.Second)
	mu.Unlock()
	mon.Check(context.Background(), "primary")

	if n := prober.count("primary"); n != 2 {
		t.Errorf("expected re-probe after TTL, got %d probes", n)
	}
}

func TestForceCheck_BypassesCache(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{CacheTTL: time.Hour})

	mon.Check(context.Background(), "primary")
	mon.ForceCheck(context.Background(), "primary")

	if n := prober.count("primary"); n != 2 {
		t.Errorf("expected force check to probe, got %d probes", n)
	}
}

func TestCheck_UnknownProvider(t *testing.T) {
	mon, _, _ := newTestMonitor(t, Config{})

	_, err := mon.Check(context.Background(), "mystery")
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeUnknownProvider {
		t.Errorf("expected UNKNOWN_PROVIDER, got %v", err)
	}
}

func TestCheck_TimedOutProbeIsFailure(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{ProbeTimeout: 20 * time.Millisecond})
	prober.block = make(chan struct{}) // never closed; probe must rely on ctx

	res, err := mon.ForceCheck(context.Background(), "primary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != provider.StatusUnhealthy {
		t.Errorf("expected timed-out probe to be unhealthy, got %s", res.Status)
	}
	if res.Err == nil {
		t.Error("expected timeout carried in result")
	}
}

func TestSummary_WorstOfAll(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{
		DegradedThreshold:  2 * time.Second,
		UnhealthyThreshold: 5 * time.Second,
	})

	if s := mon.Summary(); s.Overall != provider.StatusHealthy {
		t.Errorf("unprobed providers should read healthy, got %s", s.Overall)
	}

	prober.set("fallback", provider.ProbeResult{Success: true, Latency: 3 * time.Second})
	mon.ForceCheck(context.Background(), "fallback")

	s := mon.Summary()
	if s.Overall != provider.StatusDegraded {
		t.Errorf("expected degraded overall, got %s", s.Overall)
	}

	prober.set("primary", provider.ProbeResult{Success: false, Err: fmt.Errorf("down")})
	mon.ForceCheck(context.Background(), "primary")

	s = mon.Summary()
	if s.Overall != provider.StatusUnhealthy {
		t.Errorf("expected unhealthy overall, got %s", s.Overall)
	}
	if len(s.Providers) != 2 {
		t.Errorf("expected 2 providers in summary, got %d", len(s.Providers))
	}
}

func TestResetProvider(t *testing.T) {
	mon, reg, prober := newTestMonitor(t, Config{})
	prober.set("primary", provider.ProbeResult{Success: false, Err: fmt.Errorf("down")})
	mon.ForceCheck(context.Background(), "primary")

	if err := mon.ResetProvider("primary"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	rec, _ := reg.Get("primary")
	if rec.Status() != provider.StatusHealthy || rec.ConsecutiveFailures() != 0 {
		t.Error("expected optimistic state after reset")
	}
	if s := mon.Summary(); s.Providers["primary"].Status != provider.StatusHealthy {
		t.Error("expected summary to read healthy after reset")
	}

	if err := mon.ResetProvider("mystery"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOnStatusChange_FiresOnlyOnTransitions(t *testing.T) {
	var changes atomic.Int32
	mon, _, prober := newTestMonitor(t, Config{
		OnStatusChange: func(name string, from, to provider.Status) {
			changes.Add(1)
		},
	})

	prober.set("primary", provider.ProbeResult{Success: false, Err: fmt.Errorf("down")})
	mon.ForceCheck(context.Background(), "primary") // healthy -> unhealthy
	mon.ForceCheck(context.Background(), "primary") // unhealthy -> unhealthy
	prober.set("primary", provider.ProbeResult{Success: true, Latency: time.Millisecond})
	mon.ForceCheck(context.Background(), "primary") // unhealthy -> healthy

	if n := changes.Load(); n != 2 {
		t.Errorf("expected 2 transitions, got %d", n)
	}
}

func TestStartStop_IdempotentAndProbesImmediately(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{CheckInterval: time.Hour})
	ctx := context.Background()

	mon.Start(ctx)
	mon.Start(ctx)

	deadline := time.After(2 * time.Second)
	for prober.count("primary") == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an immediate probe at start")
		case <-time.After(5 * time.Millisecond):
		}
	}
	first := prober.count("primary")
	if first != 1 {
		t.Errorf("expected a single immediate probe from one loop, got %d", first)
	}

	mon.Stop()
	mon.Stop()

	mon.Start(ctx)
	mon.Stop()
	if n := prober.count("primary"); n != 2 {
		t.Errorf("expected one more probe after restart, got %d total", n)
	}
}

func TestSweep_SlowProviderDoesNotStallOthers(t *testing.T) {
	mon, _, prober := newTestMonitor(t, Config{ProbeTimeout: 30 * time.Millisecond, CheckInterval: time.Hour})
	prober.block = make(chan struct{})
	prober.set("primary", provider.ProbeResult{Success: true, Latency: time.Millisecond})
	prober.set("fallback", provider.ProbeResult{Success: true, Latency: time.Millisecond})

	done := make(chan struct{})
	go func() {
		mon.sweep(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not finish; probes must run concurrently under timeout")
	}
}
