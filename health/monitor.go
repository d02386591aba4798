package health

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/llmguard/errors"
	"github.com/kbukum/llmguard/logger"
	"github.com/kbukum/llmguard/observability"
	"github.com/kbukum/llmguard/provider"
)

// Config configures a Monitor.
type Config struct {
	// CheckInterval is the background probe period. Defaults to 30s.
	CheckInterval time.Duration
	// ProbeTimeout bounds each probe call. Defaults to 5s.
	ProbeTimeout time.Duration
	// CacheTTL is how long a check result stays fresh. Defaults to 30s.
	CacheTTL time.Duration
	// DegradedThreshold is the latency above which a reachable provider
	// is degraded. Defaults to 2s.
	DegradedThreshold time.Duration
	// UnhealthyThreshold is the latency above which a reachable provider
	// is unhealthy. Defaults to 5s.
	UnhealthyThreshold time.Duration
	// OnStatusChange is called outside locks when a provider's
	// classification changes.
	OnStatusChange func(name string, from, to provider.Status)
	// Metrics receives probe samples. Nil disables recording.
	Metrics *observability.Metrics
}

// DefaultConfig returns sensible monitor defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:      30 * time.Second,
		ProbeTimeout:       5 * time.Second,
		CacheTTL:           30 * time.Second,
		DegradedThreshold:  2 * time.Second,
		UnhealthyThreshold: 5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = 2 * time.Second
	}
	if c.UnhealthyThreshold <= 0 {
		c.UnhealthyThreshold = 5 * time.Second
	}
}

// CheckResult is the outcome of one health check.
type CheckResult struct {
	Provider  string          `json:"provider"`
	Status    provider.Status `json:"status"`
	Latency   time.Duration   `json:"latency"`
	CheckedAt time.Time       `json:"checked_at"`
	// Err carries the probe failure, nil on reachable providers.
	Err error `json:"-"`
}

// Summary aggregates provider health. Overall is the worst individual
// status (unhealthy > degraded > healthy).
type Summary struct {
	Overall   provider.Status        `json:"overall"`
	Providers map[string]CheckResult `json:"providers"`
}

// Monitor tracks provider health via cached and periodic probing.
type Monitor struct {
	cfg      Config
	registry *provider.Registry
	prober   provider.Prober
	log      *logger.Logger

	mu      sync.Mutex
	results map[string]CheckResult

	loopMu  sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	// now is injectable for testing.
	now func() time.Time
}

// NewMonitor creates a Monitor for the registry's providers.
func NewMonitor(registry *provider.Registry, prober provider.Prober, cfg Config) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:      cfg,
		registry: registry,
		prober:   prober,
		log:      logger.Get("health"),
		results:  make(map[string]CheckResult),
		now:      time.Now,
	}
}

// Check returns the provider's health, probing only when the cached
// result is older than CacheTTL. Probe failures are returned as data,
// never as an error; the only error is an unknown provider name.
func (m *Monitor) Check(ctx context.Context, name string) (CheckResult, error) {
	if _, ok := m.registry.Get(name); !ok {
		return CheckResult{}, errors.UnknownProvider(name)
	}

	m.mu.Lock()
	cached, ok := m.results[name]
	m.mu.Unlock()
	if ok && m.now().Sub(cached.CheckedAt) < m.cfg.CacheTTL {
		return cached, nil
	}

	return m.probe(ctx, name), nil
}

// ForceCheck probes the provider immediately, bypassing the cache.
func (m *Monitor) ForceCheck(ctx context.Context, name string) (CheckResult, error) {
	if _, ok := m.registry.Get(name); !ok {
		return CheckResult{}, errors.UnknownProvider(name)
	}
	return m.probe(ctx, name), nil
}

// probe runs one bounded probe and records the classified result.
// No lock is held while the probe is in flight.
func (m *Monitor) probe(ctx context.Context, name string) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	probeCtx, span := observability.StartSpan(probeCtx, "health.probe",
		trace.WithAttributes(attribute.String(observability.AttrProvider, name)))
	defer span.End()

	start := m.now()
	pr := m.prober.Probe(probeCtx, name)

	result := CheckResult{
		Provider:  name,
		Latency:   pr.Latency,
		CheckedAt: m.now(),
	}
	if pr.Success {
		result.Status = m.classify(pr.Latency)
	} else {
		result.Status = provider.StatusUnhealthy
		result.Err = pr.Err
		if result.Err == nil {
			if probeCtx.Err() != nil {
				result.Err = errors.ProbeTimeout(name, m.cfg.ProbeTimeout)
			} else {
				result.Err = errors.ProbeConnectionFailed(name, nil)
			}
		}
		if result.Latency == 0 {
			result.Latency = m.now().Sub(start)
		}
		observability.SetSpanError(probeCtx, result.Err)
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, result.Status.String()))
	m.cfg.Metrics.RecordProbe(ctx, name, result.Status.String(), result.Latency)

	m.store(name, result)
	return result
}

// classify maps probe latency to a status.
func (m *Monitor) classify(latency time.Duration) provider.Status {
	switch {
	case latency >= m.cfg.UnhealthyThreshold:
		return provider.StatusUnhealthy
	case latency >= m.cfg.DegradedThreshold:
		return provider.StatusDegraded
	default:
		return provider.StatusHealthy
	}
}

// store overwrites the cached result, updates the record, and emits a
// change notification when the classification flipped.
func (m *Monitor) store(name string, result CheckResult) {
	m.mu.Lock()
	m.results[name] = result
	m.mu.Unlock()

	var prev provider.Status
	if rec, ok := m.registry.Get(name); ok {
		prev = rec.UpdateHealth(result.Status, result.CheckedAt)
	}

	if prev != result.Status {
		m.log.Info("provider status changed", logger.Fields(
			logger.FieldProvider, name,
			logger.FieldStatus, result.Status.String(),
			"previous", prev.String(),
		))
		if m.cfg.OnStatusChange != nil {
			m.cfg.OnStatusChange(name, prev, result.Status)
		}
	}
}

// Summary returns every provider's latest result and the worst overall
// status. Providers never probed count as healthy (optimistic start).
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		Overall:   provider.StatusHealthy,
		Providers: make(map[string]CheckResult),
	}
	for _, name := range m.registry.Names() {
		res, ok := m.results[name]
		if !ok {
			res = CheckResult{Provider: name, Status: provider.StatusHealthy}
		}
		s.Providers[name] = res
		s.Overall = provider.Worse(s.Overall, res.Status)
	}
	return s
}

// ResetProvider restores the optimistic initial state for one provider.
func (m *Monitor) ResetProvider(name string) error {
	rec, ok := m.registry.Get(name)
	if !ok {
		return errors.UnknownProvider(name)
	}
	rec.ResetHealth()
	m.mu.Lock()
	delete(m.results, name)
	m.mu.Unlock()
	return nil
}

// Start launches the background probe loop with an immediate first
// sweep. Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.loop(ctx, m.stop)
	m.log.Info("health checks started", logger.Fields("interval", m.cfg.CheckInterval.String()))
}

// Stop halts the background loop and waits for it to exit. Idempotent.
func (m *Monitor) Stop() {
	m.loopMu.Lock()
	if !m.running {
		m.loopMu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.loopMu.Unlock()
	m.wg.Wait()
	m.log.Info("health checks stopped")
}

func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	m.sweep(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep probes all providers concurrently so one slow provider never
// stalls the others, and joins before returning.
func (m *Monitor) sweep(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range m.registry.Names() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			res := m.probe(ctx, name)
			if res.Err != nil {
				m.log.Warn("health probe failed", logger.Fields(
					logger.FieldProvider, name,
					logger.FieldError, res.Err.Error(),
				))
			}
		}(name)
	}
	wg.Wait()
}
