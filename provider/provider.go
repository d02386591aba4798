package provider

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a provider.
type Status int

const (
	// StatusHealthy indicates the provider is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded indicates the provider is operational but slow.
	StatusDegraded
	// StatusUnhealthy indicates the provider cannot handle requests.
	StatusUnhealthy
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Worse returns the worse of two statuses (unhealthy > degraded > healthy).
func Worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Role classifies a provider within the failover topology.
type Role int

const (
	// RolePrimary marks the provider protected by the circuit breaker.
	RolePrimary Role = iota
	// RoleFallback marks a provider used when the primary is unavailable.
	RoleFallback
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Config is the static configuration for one upstream provider,
// loaded once at startup.
type Config struct {
	// Name is the provider's unique name.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Role is "primary" or "fallback".
	Role Role `yaml:"role" mapstructure:"role"`
	// Model is the upstream model identifier.
	Model string `yaml:"model" mapstructure:"model" validate:"required"`
	// Endpoint is the upstream base URL.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	// Timeout is the default per-request timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ProbeResult is the outcome of one connectivity probe.
// Any probe exception is represented as Success=false with Err set.
type ProbeResult struct {
	Success         bool
	Latency         time.Duration
	Err             error
	AvailableModels []string
}

// Prober performs a minimal upstream call to test provider connectivity.
// Implementations must honor ctx cancellation; a timed-out probe is
// reported as a failure, never as an error panic.
type Prober interface {
	Probe(ctx context.Context, name string) ProbeResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, name string) ProbeResult

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, name string) ProbeResult {
	return f(ctx, name)
}

// Record is one registered upstream provider: immutable config plus
// mutable health state. Health fields are written only by the health
// monitor.
type Record struct {
	cfg Config

	mu                  sync.RWMutex
	status              Status
	lastCheck           time.Time
	lastSuccess         time.Time
	consecutiveFailures int
}

// NewRecord creates a Record in the optimistic healthy state.
func NewRecord(cfg Config) *Record {
	return &Record{cfg: cfg, status: StatusHealthy}
}

// Name returns the provider's unique name.
func (r *Record) Name() string { return r.cfg.Name }

// Role returns the provider's failover role.
func (r *Record) Role() Role { return r.cfg.Role }

// Config returns the provider's static configuration.
func (r *Record) Config() Config { return r.cfg }

// DisplayName returns a human-readable identifier for logs and summaries.
func (r *Record) DisplayName() string {
	return r.cfg.Name + " (" + r.cfg.Model + ")"
}

// Status returns the current health status.
func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// ConsecutiveFailures returns the current probe failure streak.
func (r *Record) ConsecutiveFailures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.consecutiveFailures
}

// UpdateHealth records a probe outcome. Called only by the health monitor.
// Returns the previous status so the caller can detect transitions.
func (r *Record) UpdateHealth(status Status, at time.Time) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.status
	r.status = status
	r.lastCheck = at
	if status == StatusUnhealthy {
		r.consecutiveFailures++
	} else {
		r.consecutiveFailures = 0
		r.lastSuccess = at
	}
	return prev
}

// ResetHealth restores the optimistic initial state.
func (r *Record) ResetHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusHealthy
	r.consecutiveFailures = 0
	r.lastCheck = time.Time{}
	r.lastSuccess = time.Time{}
}

// Snapshot returns a copy of the record's current state.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Name:                r.cfg.Name,
		Role:                r.cfg.Role,
		Model:               r.cfg.Model,
		Endpoint:            r.cfg.Endpoint,
		Status:              r.status,
		LastCheck:           r.lastCheck,
		LastSuccess:         r.lastSuccess,
		ConsecutiveFailures: r.consecutiveFailures,
	}
}

// Snapshot is a point-in-time copy of a Record for introspection.
type Snapshot struct {
	Name                string    `json:"name"`
	Role                Role      `json:"role"`
	Model               string    `json:"model"`
	Endpoint            string    `json:"endpoint"`
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	LastSuccess         time.Time `json:"last_success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}
