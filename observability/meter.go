package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/llmguard/version"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments for the reliability core.
type Metrics struct {
	selectionTotal     metric.Int64Counter
	rejectionTotal     metric.Int64Counter
	probeDuration      metric.Float64Histogram
	outcomeDuration    metric.Float64Histogram
	breakerTransitions metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	selectionTotal, err := meter.Int64Counter("selection.total",
		metric.WithDescription("Provider selections by strategy and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating selection.total counter: %w", err)
	}

	rejectionTotal, err := meter.Int64Counter("ratelimit.rejection.total",
		metric.WithDescription("Admission rejections by key"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ratelimit.rejection.total counter: %w", err)
	}

	probeDuration, err := meter.Float64Histogram("probe.duration",
		metric.WithDescription("Health probe duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating probe.duration histogram: %w", err)
	}

	outcomeDuration, err := meter.Float64Histogram("outcome.duration",
		metric.WithDescription("Upstream request duration in seconds by provider and status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcome.duration histogram: %w", err)
	}

	breakerTransitions, err := meter.Int64Counter("breaker.transition.total",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.transition.total counter: %w", err)
	}

	return &Metrics{
		selectionTotal:     selectionTotal,
		rejectionTotal:     rejectionTotal,
		probeDuration:      probeDuration,
		outcomeDuration:    outcomeDuration,
		breakerTransitions: breakerTransitions,
	}, nil
}

// RecordSelection records one provider selection.
func (m *Metrics) RecordSelection(ctx context.Context, strategy, provider, reason string) {
	if m == nil {
		return
	}
	m.selectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	))
}

// RecordRejection records one admission rejection.
func (m *Metrics) RecordRejection(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.rejectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
	))
}

// RecordProbe records one health probe.
func (m *Metrics) RecordProbe(ctx context.Context, provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.probeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordOutcome records one completed upstream request.
func (m *Metrics) RecordOutcome(ctx context.Context, provider string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	m.outcomeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordBreakerTransition records one circuit-breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, primary, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("primary", primary),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
