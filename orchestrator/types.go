package orchestrator

import (
	"context"
	"time"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// Collector produces the global and per-region records of one account.
type Collector interface {
	CollectGlobal(ctx context.Context) (resource.GlobalRecord, error)
	CollectRegion(ctx context.Context, region string) (resource.RegionRecord, error)
}

// Metrics receives per-region measurements. *telemetry.Provider satisfies it.
type Metrics interface {
	RecordRegionDuration(ctx context.Context, region string, d time.Duration, failed bool)
	RecordResourceCount(ctx context.Context, scope, category string, count int)
	RecordCategoryError(ctx context.Context, scope, category, code string)
}

// Phase is the state of an orchestrated run.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseGlobalCollecting
	PhaseRegionsCollecting
	PhaseMerging
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGlobalCollecting:
		return "global_collecting"
	case PhaseRegionsCollecting:
		return "regions_collecting"
	case PhaseMerging:
		return "merging"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}
