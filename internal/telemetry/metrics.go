package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	JaegerEndpoint string
	SampleRate     float64
	PushgatewayURL string
	JobName        string
}

// Telemetry manages tracing and run metrics. Metrics are pushed to a Prometheus
// Pushgateway on Stop.
type Telemetry struct {
	config         TelemetryConfig
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *prometheus.Registry

	seeded   metric.Int64Counter
	skipped  metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTelemetry creates a new telemetry instance. A disabled instance is valid and
// turns every method into a no-op.
func NewTelemetry(config TelemetryConfig) (*Telemetry, error) {
	if !config.Enabled {
		return &Telemetry{config: config}, nil
	}

	t := &Telemetry{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := t.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := t.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// initTracing initializes OpenTelemetry tracing
func (t *Telemetry) initTracing(res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if t.config.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.config.JaegerEndpoint)))
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}

		sampleRate := t.config.SampleRate
		if sampleRate == 0 {
			sampleRate = 1.0
		}
		// The process exits right after a run; export each span as it ends
		opts = append(opts,
			sdktrace.WithSyncer(exporter),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
		)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.tracer = t.tracerProvider.Tracer(t.config.ServiceName)
	return nil
}

// initMetrics initializes the run instruments on a private Prometheus registry
func (t *Telemetry) initMetrics(res *resource.Resource) error {
	exporter, err := otelprom.New(otelprom.WithRegisterer(t.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.meterProvider)

	t.meter = t.meterProvider.Meter(t.config.ServiceName)

	if t.seeded, err = t.meter.Int64Counter("emuseed.records.seeded",
		metric.WithDescription("Schema objects and records created by a seeder")); err != nil {
		return fmt.Errorf("failed to create counter: %w", err)
	}
	if t.skipped, err = t.meter.Int64Counter("emuseed.records.skipped",
		metric.WithDescription("Schema objects and records that already existed")); err != nil {
		return fmt.Errorf("failed to create counter: %w", err)
	}
	if t.failures, err = t.meter.Int64Counter("emuseed.seeder.failures",
		metric.WithDescription("Seeders that returned an error")); err != nil {
		return fmt.Errorf("failed to create counter: %w", err)
	}
	if t.duration, err = t.meter.Float64Histogram("emuseed.seeder.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one seeder")); err != nil {
		return fmt.Errorf("failed to create histogram: %w", err)
	}

	return nil
}

// Enabled reports whether telemetry records anything
func (t *Telemetry) Enabled() bool {
	return t != nil && t.config.Enabled
}

// StartSpan starts a new span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !t.Enabled() || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// RecordSeeder records the outcome of one seeder
func (t *Telemetry) RecordSeeder(ctx context.Context, seeder string, created, skipped int, elapsed time.Duration, failed bool) {
	if !t.Enabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String("seeder", seeder))
	t.seeded.Add(ctx, int64(created), attrs)
	t.skipped.Add(ctx, int64(skipped), attrs)
	if failed {
		t.failures.Add(ctx, 1, attrs)
	}
	t.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// Registry returns the registry the metrics are exported to
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Push sends the current metrics to the configured Pushgateway, if any
func (t *Telemetry) Push(ctx context.Context) error {
	if !t.Enabled() || t.config.PushgatewayURL == "" {
		return nil
	}

	job := t.config.JobName
	if job == "" {
		job = t.config.ServiceName
	}

	if err := push.New(t.config.PushgatewayURL, job).Gatherer(t.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Stop pushes metrics and flushes the providers
func (t *Telemetry) Stop(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	pushErr := t.Push(ctx)

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}

	return pushErr
}
