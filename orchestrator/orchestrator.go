// Package orchestrator runs the global and per-region collectors and merges
// their records into one snapshot.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// ErrInvalidWorkers is returned when no worker could be scheduled.
var ErrInvalidWorkers = errors.New("max workers must be at least 1")

const globalScope = "global"

// Orchestrator coordinates one inventory pass.
type Orchestrator struct {
	collector Collector
	metrics   Metrics
	tracer    trace.Tracer
	logger    *telemetry.Logger
	phase     atomic.Int32
}

// New creates an orchestrator over collector.
func New(collector Collector) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		tracer:    otel.Tracer(telemetry.InstrumentationName),
		logger:    telemetry.NewLogger("orchestrator"),
	}
}

// WithMetrics attaches a metrics recorder.
func (o *Orchestrator) WithMetrics(m Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Phase returns the current run phase.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

func (o *Orchestrator) setPhase(ctx context.Context, p Phase) {
	o.phase.Store(int32(p))
	o.logger.WithContext(ctx).Debug().Str("phase", p.String()).Msg("phase changed")
}

// Collect runs global collection once and region collection for every
// distinct region with at most maxWorkers regions in flight. Failures are
// recorded in the snapshot; only an unusable worker limit is returned as an
// error.
func (o *Orchestrator) Collect(ctx context.Context, regions []string, maxWorkers int) (*resource.Snapshot, error) {
	if maxWorkers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, maxWorkers)
	}

	ctx, span := o.tracer.Start(ctx, "inventory.collect")
	defer span.End()

	distinct := dedupe(regions)
	workers := min(maxWorkers, len(distinct))
	span.SetAttributes(
		attribute.Int("regions", len(distinct)),
		attribute.Int("workers", workers),
	)

	o.setPhase(ctx, PhaseGlobalCollecting)
	globalDone := make(chan resource.GlobalRecord, 1)
	go func() {
		globalDone <- o.collectGlobal(ctx)
	}()

	o.setPhase(ctx, PhaseRegionsCollecting)
	o.logger.WithContext(ctx).Info().
		Int("regions", len(distinct)).
		Int("workers", workers).
		Msg("collecting regional inventory")

	var (
		mu    sync.Mutex
		items = make([]resource.RegionRecord, 0, len(distinct))
	)
	if len(distinct) > 0 {
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for _, region := range distinct {
			g.Go(func() error {
				rec := o.collectRegion(ctx, region)
				mu.Lock()
				items = append(items, rec)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	global := <-globalDone

	o.setPhase(ctx, PhaseMerging)
	resource.SortRegionRecords(items)
	snap := &resource.Snapshot{
		Regions: regionList(regions),
		Global:  global,
		Items:   items,
	}

	o.setPhase(ctx, PhaseDone)
	if n := snap.ErrorCount(); n > 0 {
		span.SetAttributes(attribute.Int("errors", n))
	}
	return snap, nil
}

// collectRegion never fails: panics and environment errors become a
// substituted record for the region.
func (o *Orchestrator) collectRegion(ctx context.Context, region string) (rec resource.RegionRecord) {
	ctx, span := o.tracer.Start(ctx, "inventory.region", trace.WithAttributes(attribute.String("region", region)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			rec = o.substitute(ctx, span, region, fmt.Errorf("panic: %v", r))
		}
		o.recordRegion(ctx, rec, time.Since(start))
		span.End()
	}()

	rec, err := o.collector.CollectRegion(ctx, region)
	if err != nil {
		return o.substitute(ctx, span, region, err)
	}
	rec.Region = region
	o.logger.LogCategoryErrors(ctx, region, len(rec.Errors))
	return rec
}

func (o *Orchestrator) substitute(ctx context.Context, span trace.Span, region string, err error) resource.RegionRecord {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.LogRegionFailure(ctx, region, err)
	return resource.NewFailedRegionRecord(region, err)
}

func (o *Orchestrator) collectGlobal(ctx context.Context) (rec resource.GlobalRecord) {
	ctx, span := o.tracer.Start(ctx, "inventory.global")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			rec = o.substituteGlobal(ctx, span, fmt.Errorf("panic: %v", r))
		}
		o.recordGlobal(ctx, rec)
	}()

	rec, err := o.collector.CollectGlobal(ctx)
	if err != nil {
		return o.substituteGlobal(ctx, span, err)
	}
	return rec
}

func (o *Orchestrator) substituteGlobal(ctx context.Context, span trace.Span, err error) resource.GlobalRecord {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.WithContext(ctx).Error().Err(err).Msg("global collection failed, substituting empty record")
	return resource.NewFailedGlobalRecord(err)
}

func (o *Orchestrator) recordRegion(ctx context.Context, rec resource.RegionRecord, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRegionDuration(ctx, rec.Region, d, rec.Failed())
	for cat, records := range rec.Resources {
		o.metrics.RecordResourceCount(ctx, rec.Region, string(cat), len(records))
	}
	for cat, callErr := range rec.Errors {
		o.metrics.RecordCategoryError(ctx, rec.Region, string(cat), callErr.Code)
	}
}

func (o *Orchestrator) recordGlobal(ctx context.Context, rec resource.GlobalRecord) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordResourceCount(ctx, globalScope, string(resource.AccountAliases), len(rec.AccountAliases))
	for cat, records := range rec.Resources {
		o.metrics.RecordResourceCount(ctx, globalScope, string(cat), len(records))
	}
	for cat, callErr := range rec.Errors {
		o.metrics.RecordCategoryError(ctx, globalScope, string(cat), callErr.Code)
	}
}

// dedupe drops repeated regions, keeping first occurrence.
func dedupe(regions []string) []string {
	seen := make(map[string]struct{}, len(regions))
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// regionList copies regions; the result is never nil.
func regionList(regions []string) []string {
	out := make([]string, len(regions))
	copy(out, regions)
	return out
}
