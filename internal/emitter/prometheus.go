package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

const globalScope = "global"

type countKey struct {
	region   string
	category string
}

// PrometheusEmitter exposes the latest inventory as metrics via OTEL.
// The Prometheus exporter scrapes them from the meter provider.
type PrometheusEmitter struct {
	meter metric.Meter

	// Metrics
	resources      metric.Int64ObservableGauge
	categoryErrors metric.Int64Counter
	regionFailures metric.Int64Counter
	runDuration    metric.Float64Histogram

	// State for observable gauge
	mu     sync.RWMutex
	counts map[countKey]int
}

// NewPrometheusEmitter creates a Prometheus emitter on mp, or on the global
// meter provider when mp is nil.
func NewPrometheusEmitter(mp metric.MeterProvider) (*PrometheusEmitter, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	e := &PrometheusEmitter{
		meter:  mp.Meter(telemetry.InstrumentationName),
		counts: make(map[countKey]int),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *PrometheusEmitter) initMetrics() error {
	var err error

	e.resources, err = e.meter.Int64ObservableGauge(
		"awsaudit_resources",
		metric.WithDescription("Resources in the latest inventory"),
		metric.WithInt64Callback(e.observeResources),
	)
	if err != nil {
		return fmt.Errorf("create resources gauge: %w", err)
	}

	e.categoryErrors, err = e.meter.Int64Counter(
		"awsaudit_category_errors_total",
		metric.WithDescription("Categories that failed to collect"),
	)
	if err != nil {
		return fmt.Errorf("create category_errors counter: %w", err)
	}

	e.regionFailures, err = e.meter.Int64Counter(
		"awsaudit_region_failures_total",
		metric.WithDescription("Regions replaced by an empty record"),
	)
	if err != nil {
		return fmt.Errorf("create region_failures counter: %w", err)
	}

	e.runDuration, err = e.meter.Float64Histogram(
		"awsaudit_run_duration_seconds",
		metric.WithDescription("Wall time of one inventory run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create run_duration histogram: %w", err)
	}

	return nil
}

// Emit records the inventory as metrics.
func (e *PrometheusEmitter) Emit(ctx context.Context, inv *resource.Inventory) error {
	e.runDuration.Record(ctx, inv.RunInfo.DurationSeconds)
	if inv.Snapshot == nil {
		return nil
	}

	counts := make(map[countKey]int)

	g := inv.Global
	counts[countKey{globalScope, string(resource.AccountAliases)}] = len(g.AccountAliases)
	for _, c := range []resource.Category{resource.S3Buckets, resource.IAMUsers} {
		counts[countKey{globalScope, string(c)}] = len(g.Resources[c])
	}
	for c, callErr := range g.Errors {
		e.addCategoryError(ctx, globalScope, string(c), callErr.Code)
	}
	if g.Failure != nil {
		e.addCategoryError(ctx, globalScope, globalScope, g.Failure.Code)
	}

	for _, item := range inv.Items {
		for _, c := range resource.RegionCategories {
			counts[countKey{item.Region, string(c)}] = len(item.Resources[c])
		}
		for c, callErr := range item.Errors {
			e.addCategoryError(ctx, item.Region, string(c), callErr.Code)
		}
		if item.Failure != nil {
			e.regionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("region", item.Region)))
			log.Warn().Str("region", item.Region).Msg("region failure recorded")
		}
	}

	e.mu.Lock()
	e.counts = counts
	e.mu.Unlock()

	log.Debug().Int("series", len(counts)).Msg("inventory metrics updated")
	return nil
}

func (e *PrometheusEmitter) addCategoryError(ctx context.Context, scope, category, code string) {
	e.categoryErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("category", category),
		attribute.String("code", code),
	))
}

// observeResources is the callback for the resources gauge.
func (e *PrometheusEmitter) observeResources(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for k, n := range e.counts {
		o.Observe(int64(n), metric.WithAttributes(
			attribute.String("region", k.region),
			attribute.String("category", k.category),
		))
	}
	return nil
}

// Close is a no-op for Prometheus emitter.
func (e *PrometheusEmitter) Close() error {
	return nil
}
