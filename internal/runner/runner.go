// Package runner executes one complete audit run: identity check, inventory
// collection, report emission, optional CloudMapper work and S3 upload.
package runner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KiaraAya/aws-audit-tool/internal/cloudmapper"
	"github.com/KiaraAya/aws-audit-tool/internal/config"
	"github.com/KiaraAya/aws-audit-tool/internal/emitter"
	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// TimestampLayout names run directories and S3 prefixes.
const TimestampLayout = "20060102T150405Z"

// IdentityFile holds the caller identity of the run.
const IdentityFile = "sts_identity.json"

// IdentityResolver validates credentials and reports who the run acts as.
type IdentityResolver interface {
	Resolve(ctx context.Context) (resource.CallerIdentity, error)
}

// InventoryCollector produces the merged snapshot.
type InventoryCollector interface {
	Collect(ctx context.Context, regions []string, maxWorkers int) (*resource.Snapshot, error)
}

// Uploader copies a directory tree to S3.
type Uploader interface {
	UploadTree(ctx context.Context, bucket, prefix, root string) (int, error)
}

// Mapper runs CloudMapper for the account.
type Mapper interface {
	Run(ctx context.Context, account string, regions []string) error
	Package(account, outDir string) (string, error)
	StartWebserver(ctx context.Context, port int) (*cloudmapper.Webserver, error)
}

// Deps are the collaborators of a Runner. Uploader and Mapper are optional.
type Deps struct {
	Identity  IdentityResolver
	Collector InventoryCollector
	Uploader  Uploader
	Mapper    Mapper
	// Emitters run after the JSON and Excel outputs.
	Emitters []emitter.Emitter
}

// Result describes a completed run.
type Result struct {
	RunDir    string
	Inventory *resource.Inventory
	ZipPath   string
	Uploaded  int
	Webserver *cloudmapper.Webserver
}

// Runner executes audit runs.
type Runner struct {
	cfg    *config.Config
	deps   Deps
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
	logger *telemetry.Logger
}

// New creates a runner.
func New(cfg *config.Config, deps Deps) *Runner {
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		newID:  uuid.NewString,
		tracer: otel.Tracer(telemetry.InstrumentationName),
		logger: telemetry.NewLogger("runner"),
	}
}

// Run performs one audit run. Identity, collection, emission and upload
// failures abort it; CloudMapper failures are logged and skipped.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "audit.run")
	defer span.End()

	res, err := r.run(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, span trace.Span) (*Result, error) {
	log := r.logger.WithContext(ctx)

	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ident, err := r.deps.Identity.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate identity: %w", err)
	}

	start := r.now().UTC()
	ts := start.Format(TimestampLayout)
	runDir := filepath.Join(r.cfg.Output.Dir, ts)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	runID := r.newID()
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("run.dir", runDir))
	log.Info().Str("run_id", runID).Str("run_dir", runDir).Str("account", ident.Account).Msg("run started")

	if err := emitter.WriteJSON(filepath.Join(runDir, IdentityFile), ident); err != nil {
		return nil, err
	}

	regions := r.cfg.AWS.Regions
	snap, err := r.deps.Collector.Collect(ctx, regions, r.cfg.AWS.MaxWorkers)
	if err != nil {
		return nil, fmt.Errorf("collect inventory: %w", err)
	}

	inv := &resource.Inventory{
		Snapshot: snap,
		RunInfo: resource.RunInfo{
			RunID:           runID,
			TimestampUTC:    ts,
			Regions:         append([]string{}, regions...),
			AccountName:     r.cfg.AWS.AccountName,
			AccountIDEnv:    r.cfg.AWS.AccountID,
			STSIdentity:     ident,
			DurationSeconds: r.now().UTC().Sub(start).Seconds(),
		},
	}

	emitters := emitter.NewMultiEmitter(
		emitter.NewJSONEmitter(runDir),
		emitter.NewExcelEmitter(filepath.Join(runDir, emitter.ReportFile)),
	)
	for _, e := range r.deps.Emitters {
		emitters.Add(e)
	}
	if err := emitters.Emit(ctx, inv); err != nil {
		return nil, fmt.Errorf("emit outputs: %w", err)
	}

	res := &Result{RunDir: runDir, Inventory: inv}

	if r.cfg.CloudMapper.Enabled && r.deps.Mapper != nil {
		r.runCloudMapper(ctx, runDir, res)
	}

	if r.cfg.S3.Bucket != "" && r.deps.Uploader != nil {
		prefix := path.Join(r.cfg.S3.Prefix, ts)
		n, err := r.deps.Uploader.UploadTree(ctx, r.cfg.S3.Bucket, prefix, runDir)
		if err != nil {
			return nil, fmt.Errorf("upload outputs: %w", err)
		}
		res.Uploaded = n
		log.Info().Int("files", n).Str("bucket", r.cfg.S3.Bucket).Str("prefix", prefix).Msg("outputs uploaded")
	}

	log.Info().
		Str("run_dir", runDir).
		Int("errors", snap.ErrorCount()).
		Msg("run completed")
	if res.Webserver != nil {
		log.Info().Int("pid", res.Webserver.PID()).Int("port", res.Webserver.Port).
			Msg("cloudmapper webserver running, use an SSH tunnel to view it")
	}
	return res, nil
}

// runCloudMapper never fails the run.
func (r *Runner) runCloudMapper(ctx context.Context, runDir string, res *Result) {
	log := r.logger.WithContext(ctx)
	account := r.cfg.AWS.AccountName

	if err := r.deps.Mapper.Run(ctx, account, r.cfg.AWS.Regions); err != nil {
		log.Warn().Err(err).Msg("cloudmapper failed (non-blocking)")
		return
	}

	zipPath, err := r.deps.Mapper.Package(account, runDir)
	if err != nil {
		log.Warn().Err(err).Msg("cloudmapper packaging failed (non-blocking)")
		return
	}
	res.ZipPath = zipPath

	if !r.cfg.CloudMapper.Webserver {
		return
	}
	ws, err := r.deps.Mapper.StartWebserver(ctx, r.cfg.CloudMapper.Port)
	if err != nil {
		log.Warn().Err(err).Msg("cloudmapper webserver failed (non-blocking)")
		return
	}
	res.Webserver = ws
}
