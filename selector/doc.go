// Package selector is the entry point of the reliability core. A
// Service owns the provider registry, usage stats, rate limiter, health
// monitor, and the circuit-breaker controller protecting the primary
// provider, and exposes one operation that threads them together:
// Select admits a request against the rate limiter and picks a provider
// by strategy; RecordOutcome feeds the result of the upstream call back
// into stats and the breaker.
//
// Strategies:
//
//   - primary-first: the primary unless its circuit is open, then the
//     best fallback.
//   - health-based: best status wins, ties broken by lowest average
//     latency.
//   - round-robin: rotates through all providers regardless of health.
//   - fallback-only: never the primary.
//
// Callers must invoke RecordOutcome exactly once per attempted upstream
// call; the breaker and stats are only as accurate as that contract.
package selector
