package config

import (
	"fmt"
	"time"

	"github.com/kbukum/llmguard/failover"
	"github.com/kbukum/llmguard/health"
	"github.com/kbukum/llmguard/logger"
	"github.com/kbukum/llmguard/provider"
	"github.com/kbukum/llmguard/ratelimit"
)

// Strategy names accepted by the selection section.
const (
	StrategyPrimaryFirst = "primary-first"
	StrategyHealthBased  = "health-based"
	StrategyRoundRobin   = "round-robin"
	StrategyFallbackOnly = "fallback-only"
)

// Config is the root configuration for the reliability core.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Providers     []ProviderConfig    `yaml:"providers" mapstructure:"providers" validate:"min=1,dive"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit" mapstructure:"ratelimit"`
	Health        HealthConfig        `yaml:"health" mapstructure:"health"`
	Failover      FailoverConfig      `yaml:"failover" mapstructure:"failover"`
	Selection     SelectionConfig     `yaml:"selection" mapstructure:"selection"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	Name     string        `yaml:"name" mapstructure:"name" validate:"required"`
	Role     string        `yaml:"role" mapstructure:"role" validate:"omitempty,oneof=primary fallback"`
	Model    string        `yaml:"model" mapstructure:"model" validate:"required"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ToProvider converts the section into a registry config.
func (c ProviderConfig) ToProvider() provider.Config {
	role := provider.RoleFallback
	if c.Role == "primary" {
		role = provider.RolePrimary
	}
	return provider.Config{
		Name:     c.Name,
		Role:     role,
		Model:    c.Model,
		Endpoint: c.Endpoint,
		Timeout:  c.Timeout,
	}
}

// RateLimitConfig selects a named profile with optional overrides.
// Zero override fields keep the profile's values.
type RateLimitConfig struct {
	Profile           string  `yaml:"profile" mapstructure:"profile" validate:"omitempty,oneof=conservative standard aggressive development"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gte=0"`
	TokensPerMinute   float64 `yaml:"tokens_per_minute" mapstructure:"tokens_per_minute" validate:"gte=0"`
	BurstSize         float64 `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
}

func (c *RateLimitConfig) applyDefaults() {
	if c.Profile == "" {
		c.Profile = "standard"
	}
}

// Build resolves the profile and applies overrides.
func (c RateLimitConfig) Build(name string) ratelimit.Config {
	cfg, ok := ratelimit.ProfileByName(c.Profile, name)
	if !ok {
		cfg = ratelimit.Standard(name)
	}
	if c.RequestsPerMinute > 0 {
		cfg.RequestsPerMinute = c.RequestsPerMinute
	}
	if c.TokensPerMinute > 0 {
		cfg.TokensPerMinute = c.TokensPerMinute
	}
	if c.BurstSize > 0 {
		cfg.BurstSize = c.BurstSize
	}
	return cfg
}

// HealthConfig carries monitor intervals and latency thresholds.
// Zero fields fall back to the monitor defaults.
type HealthConfig struct {
	CheckInterval      time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	CacheTTL           time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	DegradedThreshold  time.Duration `yaml:"degraded_threshold" mapstructure:"degraded_threshold"`
	UnhealthyThreshold time.Duration `yaml:"unhealthy_threshold" mapstructure:"unhealthy_threshold"`
}

// Build converts the section into a monitor config.
func (c HealthConfig) Build() health.Config {
	return health.Config{
		CheckInterval:      c.CheckInterval,
		ProbeTimeout:       c.ProbeTimeout,
		CacheTTL:           c.CacheTTL,
		DegradedThreshold:  c.DegradedThreshold,
		UnhealthyThreshold: c.UnhealthyThreshold,
	}
}

// FailoverConfig carries circuit-breaker thresholds. Zero fields fall
// back to the controller defaults.
type FailoverConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=0"`
	RecoveryTimeout    time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold" validate:"gte=0,lte=1"`
	MinSamples         int           `yaml:"min_samples" mapstructure:"min_samples" validate:"gte=0"`
}

// Build converts the section into a controller config for one primary.
func (c FailoverConfig) Build(primary string) failover.Config {
	cfg := failover.DefaultConfig(primary)
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = c.FailureThreshold
	}
	if c.RecoveryTimeout > 0 {
		cfg.RecoveryTimeout = c.RecoveryTimeout
	}
	if c.ErrorRateThreshold > 0 {
		cfg.ErrorRateThreshold = c.ErrorRateThreshold
	}
	if c.MinSamples > 0 {
		cfg.MinSamples = c.MinSamples
	}
	return cfg
}

// SelectionConfig sets the default selection strategy.
type SelectionConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=primary-first health-based round-robin fallback-only"`
}

func (c *SelectionConfig) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyPrimaryFirst
	}
}

// ObservabilityConfig configures OTLP export. Disabled by default so
// the core runs without a collector.
type ObservabilityConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

func (c *ObservabilityConfig) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
}

// ApplyDefaults fills zero fields across all sections.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "llmguard"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.RateLimit.applyDefaults()
	c.Selection.applyDefaults()
	c.Observability.applyDefaults()
}

// Validate runs struct-tag validation followed by cross-field checks:
// unique provider names and exactly one primary.
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	seen := make(map[string]bool, len(c.Providers))
	primaries := 0
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("providers: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Role == "primary" {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("providers: exactly one primary required (got %d)", primaries)
	}
	return nil
}

// Primary returns the name of the primary provider, empty if unset.
func (c *Config) Primary() string {
	for _, p := range c.Providers {
		if p.Role == "primary" {
			return p.Name
		}
	}
	return ""
}
