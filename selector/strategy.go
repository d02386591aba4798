package selector

import (
	"fmt"

	"github.com/kbukum/llmguard/errors"
)

// Strategy names a provider selection policy.
type Strategy string

const (
	// StrategyPrimaryFirst prefers the primary while its circuit allows.
	StrategyPrimaryFirst Strategy = "primary-first"
	// StrategyHealthBased picks the best status, ties by lowest latency.
	StrategyHealthBased Strategy = "health-based"
	// StrategyRoundRobin rotates through providers, health-blind.
	StrategyRoundRobin Strategy = "round-robin"
	// StrategyFallbackOnly never selects the primary.
	StrategyFallbackOnly Strategy = "fallback-only"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPrimaryFirst, StrategyHealthBased, StrategyRoundRobin, StrategyFallbackOnly:
		return Strategy(s), nil
	default:
		return "", errors.InvalidInput("strategy", fmt.Sprintf("unknown strategy %q", s))
	}
}
