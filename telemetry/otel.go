package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OTLP export settings for the telemetry provider.
type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRate  float64
}

// Option configures a Provider beyond the OTLP settings.
type Option func(*Provider)

// WithMetricReader attaches an extra metric reader to the meter provider,
// for example a Prometheus exporter backing a scrape endpoint. Readers stack
// with the OTLP reader when an endpoint is configured.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(p *Provider) {
		p.extraReaders = append(p.extraReaders, r)
	}
}

// Provider wraps OTEL tracer and meter providers for an audit process.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	extraReaders   []sdkmetric.Reader

	auditDuration    metric.Float64Histogram
	resourcesAudited metric.Int64Counter
	nonCompliant     metric.Int64Counter
}

// NewProvider creates a telemetry provider. With an empty endpoint and no
// extra readers the providers are local-only: spans and metrics are recorded
// but not exported.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "diagaudit"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg Config, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("diagaudit")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg Config, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, reader := range p.extraReaders {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("diagaudit")

	return nil
}

func createTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.auditDuration, err = p.meter.Float64Histogram(
		"diagaudit.run.duration",
		metric.WithDescription("Duration of audit runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	p.resourcesAudited, err = p.meter.Int64Counter(
		"diagaudit.resources.audited",
		metric.WithDescription("Number of resources evaluated against policy"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return err
	}

	p.nonCompliant, err = p.meter.Int64Counter(
		"diagaudit.resources.non_compliant",
		metric.WithDescription("Number of resources with compliance findings"),
		metric.WithUnit("{resource}"),
	)
	return err
}

// Tracer returns the process tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordRun records the outcome of one audit run.
func (p *Provider) RecordRun(ctx context.Context, durationSeconds float64, audited, nonCompliant int) {
	p.auditDuration.Record(ctx, durationSeconds)
	p.resourcesAudited.Add(ctx, int64(audited))
	p.nonCompliant.Add(ctx, int64(nonCompliant))
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
