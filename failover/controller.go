package failover

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to the primary.
	StateClosed State = iota
	// StateOpen forces the fallback.
	StateOpen
	// StateHalfOpen is the implicit trial state past the retry time.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// sampleWindow is the size of the rolling outcome ring used by the
// error-rate trigger. Old successes age out, so a short burst of stale
// failures buried under later successes does not trip the breaker.
const sampleWindow = 20

// Config configures a failover controller.
type Config struct {
	// Primary is the protected provider's name, used for logging/metrics.
	Primary string
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Evaluated before the error-rate trigger.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before one
	// trial request is allowed.
	RecoveryTimeout time.Duration
	// ErrorRateThreshold opens the circuit when the failure fraction over
	// the rolling sample window reaches it (with at least MinSamples).
	ErrorRateThreshold float64
	// MinSamples is the minimum number of recent outcomes before the
	// error-rate trigger applies.
	MinSamples int
	// OnStateChange is called outside the lock when the state changes.
	OnStateChange func(primary string, from, to State)
}

// DefaultConfig returns sensible defaults for a protected primary.
func DefaultConfig(primary string) Config {
	return Config{
		Primary:            primary,
		FailureThreshold:   5,
		RecoveryTimeout:    30 * time.Second,
		ErrorRateThreshold: 0.5,
		MinSamples:         10,
	}
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
}

// FailoverState is a snapshot of the controller for introspection.
type FailoverState struct {
	Primary             string    `json:"primary"`
	InFailover          bool      `json:"in_failover"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CircuitBreakerOpen  bool      `json:"circuit_breaker_open"`
	// NextRetryTime is zero while the circuit is closed.
	NextRetryTime time.Time `json:"next_retry_time,omitzero"`
}

// Controller runs the circuit-breaker state machine for one primary.
type Controller struct {
	cfg Config

	mu                  sync.Mutex
	open                bool
	inFailover          bool
	consecutiveFailures int
	nextRetry           time.Time
	trialInFlight       bool

	// samples is a rolling ring of recent outcomes (true = failure).
	samples [sampleWindow]bool
	sampleN int
	sampleI int

	// now is injectable for testing.
	now func() time.Time
}

// NewController creates a closed controller.
func NewController(cfg Config) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg: cfg,
		now: time.Now,
	}
}

// Primary returns the protected provider's name.
func (c *Controller) Primary() string { return c.cfg.Primary }

// ShouldUsePrimary reports whether the primary is eligible for the next
// request. Past the retry time it claims the single recovery trial, so
// exactly one concurrent caller receives true per open period.
func (c *Controller) ShouldUsePrimary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return true
	}
	if c.trialInFlight || c.now().Before(c.nextRetry) {
		return false
	}
	// Claim the trial atomically with the check.
	c.trialInFlight = true
	return true
}

// RecordSuccess records a successful primary request. It always resets
// failure tracking, closing the circuit and clearing failover if open.
func (c *Controller) RecordSuccess() {
	c.mu.Lock()
	wasOpen := c.open
	c.consecutiveFailures = 0
	c.open = false
	c.inFailover = false
	c.trialInFlight = false
	c.nextRetry = time.Time{}
	c.recordSample(false)
	c.mu.Unlock()

	if wasOpen {
		c.notify(StateOpen, StateClosed)
	}
}

// RecordFailure records a failed primary request and may open the circuit.
func (c *Controller) RecordFailure() {
	c.mu.Lock()
	c.consecutiveFailures++
	c.recordSample(true)

	var from, to State
	notify := false

	if c.open {
		if c.trialInFlight {
			// Failed recovery trial: stay open, push the retry forward.
			c.trialInFlight = false
			c.nextRetry = c.now().Add(c.cfg.RecoveryTimeout)
			from, to, notify = StateHalfOpen, StateOpen, true
		}
	} else if c.shouldTrip() {
		c.open = true
		c.inFailover = true
		c.nextRetry = c.now().Add(c.cfg.RecoveryTimeout)
		from, to, notify = StateClosed, StateOpen, true
	}
	c.mu.Unlock()

	if notify {
		c.notify(from, to)
	}
}

// State returns a snapshot of the controller.
func (c *Controller) State() FailoverState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FailoverState{
		Primary:             c.cfg.Primary,
		InFailover:          c.inFailover,
		ConsecutiveFailures: c.consecutiveFailures,
		CircuitBreakerOpen:  c.open,
		NextRetryTime:       c.nextRetry,
	}
}

// Reset restores the controller to the closed state.
func (c *Controller) Reset() {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.inFailover = false
	c.consecutiveFailures = 0
	c.trialInFlight = false
	c.nextRetry = time.Time{}
	c.sampleN = 0
	c.sampleI = 0
	c.mu.Unlock()

	if wasOpen {
		c.notify(StateOpen, StateClosed)
	}
}

// shouldTrip evaluates the trip triggers. The consecutive-failure
// threshold takes precedence; the error-rate trigger looks only at the
// rolling sample ring. Caller must hold the lock.
func (c *Controller) shouldTrip() bool {
	if c.consecutiveFailures >= c.cfg.FailureThreshold {
		return true
	}
	if c.sampleN < c.cfg.MinSamples {
		return false
	}
	failures := 0
	for i := 0; i < c.sampleN; i++ {
		if c.samples[i] {
			failures++
		}
	}
	return float64(failures)/float64(c.sampleN) >= c.cfg.ErrorRateThreshold
}

// recordSample appends an outcome to the rolling ring.
// Caller must hold the lock.
func (c *Controller) recordSample(failed bool) {
	c.samples[c.sampleI] = failed
	c.sampleI = (c.sampleI + 1) % sampleWindow
	if c.sampleN < sampleWindow {
		c.sampleN++
	}
}

func (c *Controller) notify(from, to State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(c.cfg.Primary, from, to)
	}
}
