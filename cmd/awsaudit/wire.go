package main

import (
	"context"
	"fmt"

	"github.com/KiaraAya/aws-audit-tool/internal/cloudmapper"
	awscollector "github.com/KiaraAya/aws-audit-tool/internal/collector/aws"
	"github.com/KiaraAya/aws-audit-tool/internal/config"
	"github.com/KiaraAya/aws-audit-tool/internal/emitter"
	"github.com/KiaraAya/aws-audit-tool/internal/identity"
	"github.com/KiaraAya/aws-audit-tool/internal/runner"
	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
	"github.com/KiaraAya/aws-audit-tool/internal/upload"
	"github.com/KiaraAya/aws-audit-tool/orchestrator"
)

// newRunner builds a runner from cfg with real AWS collaborators.
func newRunner(ctx context.Context, cfg *config.Config, provider *telemetry.Provider, extra ...emitter.Emitter) (*runner.Runner, error) {
	awsCfg, err := awscollector.LoadConfig(ctx, cfg.AWS.Profile, cfg.AWS.GlobalRegion)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	collector := awscollector.New(awsCfg, nil, awscollector.Options{
		GlobalRegion:      cfg.AWS.GlobalRegion,
		RequestsPerSecond: cfg.AWS.RequestsPerSecond,
		CallTimeout:       cfg.AWS.CallTimeout,
	})
	orch := orchestrator.New(collector)
	if provider != nil {
		orch = orch.WithMetrics(provider)
	}

	deps := runner.Deps{
		Identity:  identity.FromConfig(awsCfg),
		Collector: orch,
		Emitters:  extra,
	}
	if cfg.S3.Bucket != "" {
		deps.Uploader = upload.FromConfig(awsCfg, cfg.S3.Region)
	}
	if cfg.CloudMapper.Enabled {
		deps.Mapper = cloudmapper.New(cfg.CloudMapper)
	}
	return runner.New(cfg, deps), nil
}
