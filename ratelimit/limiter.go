package ratelimit

import (
	"sync"
	"time"
)

// Config configures a Limiter.
type Config struct {
	// Name identifies this limiter for metrics/logging.
	Name string
	// RequestsPerMinute bounds request count inside the sliding window.
	RequestsPerMinute int
	// TokensPerMinute is the token bucket refill rate.
	TokensPerMinute float64
	// BurstSize is the token bucket capacity. Defaults to TokensPerMinute.
	BurstSize float64
	// WindowSize is the sliding window span. Defaults to one minute.
	WindowSize time.Duration
	// CleanupInterval is how often the janitor sweeps idle keys. Defaults to 60s.
	CleanupInterval time.Duration
	// IdleTTL is how long a key may sit unused before eviction. Defaults to 5m.
	IdleTTL time.Duration
	// OnLimit is called when a request is rejected.
	OnLimit func(key string)
}

func (c *Config) applyDefaults() {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.TokensPerMinute <= 0 {
		c.TokensPerMinute = 100_000
	}
	if c.BurstSize <= 0 {
		c.BurstSize = c.TokensPerMinute
	}
	if c.WindowSize <= 0 {
		c.WindowSize = time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 60 * time.Second
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
}

// Overrides adjusts limits for a single check. Zero fields keep the
// limiter's configured values.
type Overrides struct {
	RequestsPerMinute int
	TokensPerMinute   float64
	BurstSize         float64
}

// Result is the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the unused request allowance in the current window.
	// Never negative.
	Remaining int
	// ResetTime is when the failing constraint clears (or the window
	// resets, when allowed).
	ResetTime time.Time
	// RetryAfter is how long until the key admits again. Zero when allowed.
	RetryAfter time.Duration
}

// Status describes the current state of one key.
type Status struct {
	// Requests is the number of requests inside the current window.
	Requests int
	// Remaining is the unused request allowance in the current window.
	Remaining int
	// Tokens is the current token balance.
	Tokens float64
	// Capacity is the token bucket capacity.
	Capacity float64
	// LastSeen is when the key was last checked.
	LastSeen time.Time
}

// entry holds per-key admission state: window timestamps and bucket
// balance under one mutex so refill-then-consume is atomic per key.
type entry struct {
	mu         sync.Mutex
	timestamps []time.Time
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// Limiter is a per-key admission controller.
type Limiter struct {
	cfg Config

	mu   sync.Mutex
	keys map[string]*entry

	janitorMu sync.Mutex
	running   bool
	stop      chan struct{}
	wg        sync.WaitGroup

	// now is injectable for testing.
	now func() time.Time
}

// New creates a Limiter with the given config.
func New(cfg Config) *Limiter {
	cfg.applyDefaults()
	return &Limiter{
		cfg:  cfg,
		keys: make(map[string]*entry),
		now:  time.Now,
	}
}

// Check evaluates both algorithms for key at the given cost and consumes
// the allowance when admitted. Costs below 1 are rounded up to 1.
func (l *Limiter) Check(key string, cost float64) Result {
	return l.check(key, cost, nil, true)
}

// CheckWithOverrides is Check with per-call limit overrides.
func (l *Limiter) CheckWithOverrides(key string, cost float64, ov *Overrides) Result {
	return l.check(key, cost, ov, true)
}

// DryRun evaluates the same checks as Check without consuming anything.
func (l *Limiter) DryRun(key string, cost float64) Result {
	return l.check(key, cost, nil, false)
}

func (l *Limiter) check(key string, cost float64, ov *Overrides, consume bool) Result {
	if cost < 1 {
		cost = 1
	}

	rpm := l.cfg.RequestsPerMinute
	tpm := l.cfg.TokensPerMinute
	burst := l.cfg.BurstSize
	if ov != nil {
		if ov.RequestsPerMinute > 0 {
			rpm = ov.RequestsPerMinute
		}
		if ov.TokensPerMinute > 0 {
			tpm = ov.TokensPerMinute
		}
		if ov.BurstSize > 0 {
			burst = ov.BurstSize
		}
	}
	refillPerSec := tpm / 60.0

	e := l.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if consume {
		e.lastSeen = now
	}

	// Sliding window first: drop expired entries, then fast-reject on count.
	cutoff := now.Add(-l.cfg.WindowSize)
	e.timestamps = pruneBefore(e.timestamps, cutoff)

	if len(e.timestamps)+1 > rpm {
		oldest := e.timestamps[0]
		res := Result{
			Allowed:    false,
			Remaining:  clampNonNegative(rpm - len(e.timestamps)),
			ResetTime:  oldest.Add(l.cfg.WindowSize),
			RetryAfter: oldest.Add(l.cfg.WindowSize).Sub(now),
		}
		if consume {
			l.limited(key)
		}
		return res
	}

	// Token bucket: refill from elapsed time, capped at capacity.
	tokens := e.tokens
	if e.lastRefill.IsZero() {
		tokens = burst
	} else {
		tokens += now.Sub(e.lastRefill).Seconds() * refillPerSec
		if tokens > burst {
			tokens = burst
		}
	}

	if tokens < cost {
		// Rejection leaves the bucket untouched; the refill is recomputed
		// from lastRefill on the next check.
		deficit := cost - tokens
		wait := time.Duration(deficit / refillPerSec * float64(time.Second))
		if consume {
			l.limited(key)
		}
		return Result{
			Allowed:    false,
			Remaining:  clampNonNegative(rpm - len(e.timestamps)),
			ResetTime:  now.Add(wait),
			RetryAfter: wait,
		}
	}

	if consume {
		e.timestamps = append(e.timestamps, now)
		e.tokens = tokens - cost
		e.lastRefill = now
	}

	remaining := rpm - len(e.timestamps)
	if !consume {
		remaining--
	}
	return Result{
		Allowed:   true,
		Remaining: clampNonNegative(remaining),
		ResetTime: now.Add(l.cfg.WindowSize),
	}
}

// Status returns the current state of one key without mutating it.
func (l *Limiter) Status(key string) (Status, bool) {
	l.mu.Lock()
	e, ok := l.keys[key]
	l.mu.Unlock()
	if !ok {
		return Status{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	valid := pruneBefore(e.timestamps, now.Add(-l.cfg.WindowSize))

	tokens := e.tokens
	if e.lastRefill.IsZero() {
		tokens = l.cfg.BurstSize
	} else {
		tokens += now.Sub(e.lastRefill).Seconds() * l.cfg.TokensPerMinute / 60.0
		if tokens > l.cfg.BurstSize {
			tokens = l.cfg.BurstSize
		}
	}

	return Status{
		Requests:  len(valid),
		Remaining: clampNonNegative(l.cfg.RequestsPerMinute - len(valid)),
		Tokens:    tokens,
		Capacity:  l.cfg.BurstSize,
		LastSeen:  e.lastSeen,
	}, true
}

// Reset clears all state for one key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}

// ResetAll clears all per-key state.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = make(map[string]*entry)
}

// Cleanup evicts keys idle longer than IdleTTL and returns the count.
func (l *Limiter) Cleanup() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, e := range l.keys {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(l.keys, key)
			evicted++
		}
	}
	return evicted
}

// Start launches the periodic janitor. Idempotent.
func (l *Limiter) Start() {
	l.janitorMu.Lock()
	defer l.janitorMu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.wg.Add(1)
	go l.janitor(l.stop)
}

// Stop halts the janitor and waits for it to exit. Idempotent.
func (l *Limiter) Stop() {
	l.janitorMu.Lock()
	if !l.running {
		l.janitorMu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	l.janitorMu.Unlock()
	l.wg.Wait()
}

func (l *Limiter) janitor(stop <-chan struct{}) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// entry returns the state for key, creating it lazily.
func (l *Limiter) entry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{}
		l.keys[key] = e
	}
	return e
}

func (l *Limiter) limited(key string) {
	if l.cfg.OnLimit != nil {
		l.cfg.OnLimit(key)
	}
}

// pruneBefore drops timestamps at or before cutoff, preserving order.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
