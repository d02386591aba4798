// Package observability provides OpenTelemetry metrics and tracing for
// the llmguard control core.
//
// InitMeter and InitTracer configure OTLP HTTP export and set the global
// providers; both return providers that must be shut down on exit.
// Metrics holds the domain instruments: provider selections, admission
// rejections, probe latency, outcome latency, and circuit-breaker
// transitions. All Record methods are nil-receiver safe, so the core
// runs unchanged when metrics are not configured.
package observability
