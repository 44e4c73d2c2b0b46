package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "awsaudit.daemon"

// DaemonMetrics holds operational metrics using OTEL semantic conventions
type DaemonMetrics struct {
	runs                metric.Int64Counter
	runDuration         metric.Float64Histogram
	resourcesDiscovered metric.Int64Gauge
}

// NewDaemonMetrics creates daemon metrics on the global meter provider
func NewDaemonMetrics() (*DaemonMetrics, error) {
	return NewDaemonMetricsWithProvider(otel.GetMeterProvider())
}

// NewDaemonMetricsWithProvider creates daemon metrics on mp
func NewDaemonMetricsWithProvider(mp metric.MeterProvider) (*DaemonMetrics, error) {
	meter := mp.Meter(meterName)

	runs, err := meter.Int64Counter(
		"awsaudit.daemon.runs",
		metric.WithDescription("Number of audit runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"awsaudit.daemon.run.duration",
		metric.WithDescription("Duration of audit runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	resourcesDiscovered, err := meter.Int64Gauge(
		"awsaudit.resources.discovered",
		metric.WithDescription("Number of cloud resources discovered in the latest run"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		runs:                runs,
		runDuration:         runDuration,
		resourcesDiscovered: resourcesDiscovered,
	}, nil
}

// RecordRun records an audit run with status
func (m *DaemonMetrics) RecordRun(ctx context.Context, status string) {
	m.runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("cloud.provider", "aws"),
		),
	)
}

// RecordRunDuration records run duration
func (m *DaemonMetrics) RecordRunDuration(ctx context.Context, durationSeconds float64, status string) {
	m.runDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordResourcesDiscovered records number of resources found for a category
func (m *DaemonMetrics) RecordResourcesDiscovered(ctx context.Context, count int64, category string) {
	m.resourcesDiscovered.Record(ctx, count,
		metric.WithAttributes(
			attribute.String("resource.type", category),
			attribute.String("cloud.provider", "aws"),
		),
	)
}
