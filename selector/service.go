package selector

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/llmguard/config"
	"github.com/kbukum/llmguard/errors"
	"github.com/kbukum/llmguard/failover"
	"github.com/kbukum/llmguard/health"
	"github.com/kbukum/llmguard/logger"
	"github.com/kbukum/llmguard/observability"
	"github.com/kbukum/llmguard/provider"
	"github.com/kbukum/llmguard/ratelimit"
)

// Options assembles a Service from its component configs.
type Options struct {
	// Providers are registered at construction. At most one may carry
	// RolePrimary; without a primary the breaker is disabled.
	Providers []provider.Config
	// Prober performs health probes. Required.
	Prober provider.Prober
	// DefaultStrategy applies when a request leaves Strategy empty.
	// Defaults to primary-first.
	DefaultStrategy Strategy
	// RateLimit configures the admission limiter.
	RateLimit ratelimit.Config
	// Health configures the monitor.
	Health health.Config
	// Failover configures the breaker protecting the primary. The
	// Primary field is filled from the registry when empty.
	Failover failover.Config
	// Metrics receives domain instruments. Nil disables recording.
	Metrics *observability.Metrics
}

// Request asks for one provider selection.
type Request struct {
	// Strategy overrides the service default when set.
	Strategy Strategy
	// Key is the admission key (API key, tenant). Empty uses "default".
	Key string
	// EstimatedCost in tokens. Values below one count as one.
	EstimatedCost float64
}

// Selection is the outcome of a successful Select.
type Selection struct {
	// ID correlates this selection with its later RecordOutcome logs.
	ID        string             `json:"id"`
	Provider  provider.Snapshot  `json:"provider"`
	Strategy  Strategy           `json:"strategy"`
	Reason    string             `json:"reason"`
	Health    health.CheckResult `json:"health"`
	Admission ratelimit.Result   `json:"admission"`
}

// Service routes requests to providers with admission control, health
// awareness, and primary failover.
type Service struct {
	registry *provider.Registry
	stats    *provider.Stats
	limiter  *ratelimit.Limiter
	monitor  *health.Monitor
	breaker  *failover.Controller
	metrics  *observability.Metrics
	log      *logger.Logger

	defaultStrategy Strategy
	rr              atomic.Uint64
}

// New builds a Service and registers the configured providers.
func New(opts Options) (*Service, error) {
	if opts.Prober == nil {
		return nil, errors.InvalidInput("prober", "a prober is required")
	}
	if len(opts.Providers) == 0 {
		return nil, errors.InvalidInput("providers", "at least one provider is required")
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = StrategyPrimaryFirst
	}
	if _, err := ParseStrategy(string(opts.DefaultStrategy)); err != nil {
		return nil, err
	}

	s := &Service{
		registry:        provider.NewRegistry(),
		stats:           provider.NewStats(),
		metrics:         opts.Metrics,
		log:             logger.Get("selector"),
		defaultStrategy: opts.DefaultStrategy,
	}

	for _, pc := range opts.Providers {
		if _, err := s.registry.Register(pc); err != nil {
			return nil, err
		}
	}

	userOnLimit := opts.RateLimit.OnLimit
	opts.RateLimit.OnLimit = func(key string) {
		s.metrics.RecordRejection(context.Background(), key)
		s.log.Warn("request rate limited", logger.Fields(logger.FieldKey, key))
		if userOnLimit != nil {
			userOnLimit(key)
		}
	}
	s.limiter = ratelimit.New(opts.RateLimit)

	opts.Health.Metrics = opts.Metrics
	s.monitor = health.NewMonitor(s.registry, opts.Prober, opts.Health)

	if primary, ok := s.registry.Primary(); ok {
		fcfg := opts.Failover
		if fcfg.Primary == "" {
			fcfg.Primary = primary.Name()
		}
		userOnState := fcfg.OnStateChange
		fcfg.OnStateChange = func(name string, from, to failover.State) {
			s.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
			s.log.Warn("breaker state changed", logger.Fields(
				logger.FieldProvider, name,
				"from", from.String(),
				"to", to.String(),
			))
			if userOnState != nil {
				userOnState(name, from, to)
			}
		}
		s.breaker = failover.NewController(fcfg)
	}

	return s, nil
}

// NewFromConfig builds a Service from loaded application config.
func NewFromConfig(cfg *config.Config, prober provider.Prober, metrics *observability.Metrics) (*Service, error) {
	providers := make([]provider.Config, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers = append(providers, pc.ToProvider())
	}
	return New(Options{
		Providers:       providers,
		Prober:          prober,
		DefaultStrategy: Strategy(cfg.Selection.Strategy),
		RateLimit:       cfg.RateLimit.Build(cfg.Name),
		Health:          cfg.Health.Build(),
		Failover:        cfg.Failover.Build(cfg.Primary()),
		Metrics:         metrics,
	})
}

// Select admits the request against the rate limiter and picks a
// provider by strategy. A rejection returns a retryable rate-limit
// AppError carrying retry-after and remaining capacity; breaker and
// availability failures return their own typed errors. Select never
// blocks on network I/O beyond a possible cached-health refresh.
func (s *Service) Select(ctx context.Context, req Request) (*Selection, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	key := req.Key
	if key == "" {
		key = "default"
	}
	cost := req.EstimatedCost
	if cost < 1 {
		cost = 1
	}

	ctx, span := observability.StartSpan(ctx, "selector.select",
		trace.WithAttributes(attribute.String(observability.AttrStrategy, string(strategy))))
	defer span.End()

	admission := s.limiter.Check(key, cost)
	if !admission.Allowed {
		err := errors.RateLimitExceeded(admission.RetryAfter, admission.Remaining)
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	rec, reason, err := s.pick(strategy)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(observability.AttrProvider, rec.Name()))

	checked, _ := s.monitor.Check(ctx, rec.Name())

	sel := &Selection{
		ID:        uuid.NewString(),
		Provider:  rec.Snapshot(),
		Strategy:  strategy,
		Reason:    reason,
		Health:    checked,
		Admission: admission,
	}

	s.metrics.RecordSelection(ctx, string(strategy), rec.Name(), reason)
	s.log.Debug("provider selected", logger.Fields(
		logger.FieldSelection, sel.ID,
		logger.FieldProvider, rec.Name(),
		logger.FieldStrategy, string(strategy),
		logger.FieldReason, reason,
		logger.FieldRemaining, admission.Remaining,
	))
	return sel, nil
}

// pick resolves the strategy to a concrete provider record. The breaker
// is consulted only when the primary is about to be chosen, so recovery
// trials are never claimed for a provider that is not selected.
func (s *Service) pick(strategy Strategy) (*provider.Record, string, error) {
	switch strategy {
	case StrategyPrimaryFirst:
		primary, ok := s.registry.Primary()
		if !ok {
			if rec := s.best(s.registry.Fallbacks()); rec != nil {
				return rec, "no primary configured", nil
			}
			return nil, "", errors.UpstreamUnavailable()
		}
		if s.primaryEligible() {
			return primary, "primary preferred", nil
		}
		if rec := s.best(s.registry.Fallbacks()); rec != nil {
			return rec, "circuit open, failing over", nil
		}
		st := s.breaker.State()
		return nil, "", errors.CircuitOpen(primary.Name(), st.NextRetryTime)

	case StrategyHealthBased:
		for _, rec := range s.ranked(s.registry.All()) {
			if rec.Role() == provider.RolePrimary && !s.primaryEligible() {
				continue
			}
			return rec, fmt.Sprintf("best health: %s", rec.Status()), nil
		}
		return nil, "", errors.UpstreamUnavailable()

	case StrategyRoundRobin:
		names := s.registry.Names()
		if len(names) == 0 {
			return nil, "", errors.UpstreamUnavailable()
		}
		start := int(s.rr.Add(1)-1) % len(names)
		for i := 0; i < len(names); i++ {
			rec, ok := s.registry.Get(names[(start+i)%len(names)])
			if !ok {
				continue
			}
			if rec.Role() == provider.RolePrimary && !s.primaryEligible() {
				continue
			}
			return rec, "round-robin", nil
		}
		return nil, "", errors.UpstreamUnavailable()

	case StrategyFallbackOnly:
		if rec := s.best(s.registry.Fallbacks()); rec != nil {
			return rec, "fallback only", nil
		}
		return nil, "", errors.UpstreamUnavailable()
	}
	return nil, "", errors.InvalidInput("strategy", fmt.Sprintf("unknown strategy %q", strategy))
}

// primaryEligible consults the breaker. Calling it may claim the single
// recovery trial, so callers only invoke it when the primary would win.
func (s *Service) primaryEligible() bool {
	return s.breaker == nil || s.breaker.ShouldUsePrimary()
}

// best returns the healthiest record, ties broken by lowest average
// latency, nil for an empty slice.
func (s *Service) best(recs []*provider.Record) *provider.Record {
	ranked := s.ranked(recs)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}

// ranked orders records by status (healthy first), then by EWMA latency.
func (s *Service) ranked(recs []*provider.Record) []*provider.Record {
	out := make([]*provider.Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Status(), out[j].Status()
		if si != sj {
			return si < sj
		}
		li, _ := s.stats.Get(out[i].Name())
		lj, _ := s.stats.Get(out[j].Name())
		return li.AvgLatency < lj.AvgLatency
	})
	return out
}

// RecordOutcome feeds the result of one attempted upstream call back
// into the core: usage stats always, the breaker when the provider is
// the protected primary. Callers invoke it exactly once per attempt.
// An unknown provider name is a programming error and panics.
func (s *Service) RecordOutcome(name string, success bool, latency time.Duration, err error) {
	if _, ok := s.registry.Get(name); !ok {
		panic(errors.UnknownProvider(name))
	}

	if success {
		s.stats.RecordSuccess(name, latency)
	} else {
		s.stats.RecordFailure(name)
		fields := logger.Fields(
			logger.FieldProvider, name,
			logger.FieldLatency, latency.Milliseconds(),
		)
		if err != nil {
			fields[logger.FieldError] = err.Error()
		}
		s.log.Warn("provider request failed", fields)
	}

	if s.breaker != nil && s.breaker.Primary() == name {
		if success {
			s.breaker.RecordSuccess()
		} else {
			s.breaker.RecordFailure()
		}
	}

	s.metrics.RecordOutcome(context.Background(), name, success, latency)
}

// HealthSummary returns the latest health of all providers.
func (s *Service) HealthSummary() health.Summary {
	return s.monitor.Summary()
}

// FailoverState returns the breaker snapshot; the zero value when no
// primary is configured.
func (s *Service) FailoverState() failover.FailoverState {
	if s.breaker == nil {
		return failover.FailoverState{}
	}
	return s.breaker.State()
}

// ProviderStats returns a copy of per-provider usage statistics.
func (s *Service) ProviderStats() map[string]provider.UsageStats {
	return s.stats.Snapshot()
}

// LimitStatus returns the rate-limit state for one admission key.
func (s *Service) LimitStatus(key string) (ratelimit.Status, bool) {
	return s.limiter.Status(key)
}

// ForceHealthCheck probes a provider immediately, bypassing the cache.
func (s *Service) ForceHealthCheck(ctx context.Context, name string) (health.CheckResult, error) {
	return s.monitor.ForceCheck(ctx, name)
}

// Start launches the health loop and the limiter janitor. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.monitor.Start(ctx)
	s.limiter.Start()
	s.log.Info("selector started", logger.Fields(
		"providers", s.registry.Len(),
		logger.FieldStrategy, string(s.defaultStrategy),
	))
}

// Close stops the background loops and waits for them. Idempotent.
func (s *Service) Close() {
	s.monitor.Stop()
	s.limiter.Stop()
	s.log.Info("selector stopped")
}
