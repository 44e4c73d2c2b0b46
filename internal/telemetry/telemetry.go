// Package telemetry wires OpenTelemetry traces and metrics for audit runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/KiaraAya/aws-audit-tool/internal/config"
)

// InstrumentationName is the tracer and meter name used across the tool.
const InstrumentationName = "awsaudit"

// regionBuckets covers a quiet region (a few seconds) up to a throttled one.
var regionBuckets = []float64{1, 2, 5, 10, 20, 40, 60, 120, 300}

// Provider owns the tracer and meter providers of the process and the
// instruments the orchestrator reports into.
type Provider struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer

	regionSeconds metric.Float64Histogram
	collected     metric.Int64Counter
	collectErrors metric.Int64Counter
}

// NewProvider installs global tracer and meter providers. OTLP export is
// enabled per signal when an endpoint is configured; extra readers such as
// the Prometheus exporter are always attached.
func NewProvider(ctx context.Context, cfg config.OTELConfig, readers ...sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, cfg, res, readers)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := &Provider{tp: tp, mp: mp, tracer: tp.Tracer(InstrumentationName)}
	if err := p.instruments(mp.Meter(InstrumentationName)); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	return p, nil
}

func newTracerProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if !cfg.Traces.Enabled || cfg.Endpoint == "" {
		return sdktrace.NewTracerProvider(opts...), nil
	}

	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	opts = append(opts,
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))),
	)
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, readers []sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	if !cfg.Metrics.Enabled || cfg.Endpoint == "" {
		return sdkmetric.NewMeterProvider(opts...), nil
	}

	grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	return sdkmetric.NewMeterProvider(opts...), nil
}

func (p *Provider) instruments(m metric.Meter) error {
	var err error
	if p.regionSeconds, err = m.Float64Histogram(
		"awsaudit_region_collect_duration_seconds",
		metric.WithDescription("Wall time spent collecting one region"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(regionBuckets...),
	); err != nil {
		return fmt.Errorf("create region duration histogram: %w", err)
	}
	if p.collected, err = m.Int64Counter(
		"awsaudit_resources_collected_total",
		metric.WithDescription("Records collected, by scope and category"),
	); err != nil {
		return fmt.Errorf("create collected counter: %w", err)
	}
	if p.collectErrors, err = m.Int64Counter(
		"awsaudit_collect_errors_total",
		metric.WithDescription("Categories whose collection failed, by provider error code"),
	); err != nil {
		return fmt.Errorf("create collect error counter: %w", err)
	}
	return nil
}

// Tracer returns the tracer of the installed provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordRegionDuration records how long a region took to collect.
func (p *Provider) RecordRegionDuration(ctx context.Context, region string, d time.Duration, failed bool) {
	p.regionSeconds.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("region", region),
		attribute.Bool("failed", failed),
	))
}

// RecordResourceCount adds the records collected for one category of a scope.
// scope is a region name or "global".
func (p *Provider) RecordResourceCount(ctx context.Context, scope, category string, count int) {
	p.collected.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("category", category),
	))
}

// RecordCategoryError counts one failed category.
func (p *Provider) RecordCategoryError(ctx context.Context, scope, category, code string) {
	p.collectErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("category", category),
		attribute.String("code", code),
	))
}

// Shutdown flushes pending spans and metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
	}
	return errors.Join(errs...)
}
