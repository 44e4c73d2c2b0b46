// Package daemon repeats audit runs on an interval and reports their health.
package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/internal/runner"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Runner performs one audit run.
type Runner interface {
	Run(ctx context.Context) (*runner.Result, error)
}

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
}

// Daemon manages repeated audit runs
type Daemon struct {
	interval  time.Duration
	runner    Runner
	metrics   *DaemonMetrics
	startTime time.Time
	runCount  atomic.Int64

	mu         sync.RWMutex
	lastRun    time.Time
	lastStatus string
	lastRunDir string
	lastErr    string
}

// NewDaemon creates a new daemon instance. metrics may be nil.
func NewDaemon(config Config, r Runner, metrics *DaemonMetrics) (*Daemon, error) {
	if config.Interval <= 0 {
		return nil, errors.New("daemon interval must be positive")
	}
	if r == nil {
		return nil, errors.New("daemon needs a runner")
	}
	return &Daemon{
		interval:  config.Interval,
		runner:    r,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// Start runs immediately, then once per interval until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	log.Info().Dur("interval", d.interval).Msg("daemon started")
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("runs", d.RunCount()).Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.runCount.Add(1)
	start := time.Now()

	res, err := d.runner.Run(ctx)
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		log.Error().Err(err).Msg("audit run failed")
	}

	d.mu.Lock()
	d.lastRun = start
	d.lastStatus = status
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
	} else if res != nil {
		d.lastRunDir = res.RunDir
	}
	d.mu.Unlock()

	if d.metrics == nil {
		return
	}
	d.metrics.RecordRun(ctx, status)
	d.metrics.RecordRunDuration(ctx, time.Since(start).Seconds(), status)
	if res != nil && res.Inventory != nil && res.Inventory.Snapshot != nil {
		recordDiscovered(ctx, d.metrics, res.Inventory.Snapshot)
	}
}

func recordDiscovered(ctx context.Context, m *DaemonMetrics, snap *resource.Snapshot) {
	for cat, n := range snap.Counts() {
		m.RecordResourcesDiscovered(ctx, int64(n), string(cat))
	}
	m.RecordResourcesDiscovered(ctx, int64(len(snap.Global.Resources[resource.S3Buckets])), string(resource.S3Buckets))
	m.RecordResourcesDiscovered(ctx, int64(len(snap.Global.Resources[resource.IAMUsers])), string(resource.IAMUsers))
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h := HealthStatus{
		Status:     "starting",
		Uptime:     int64(time.Since(d.startTime).Seconds()),
		Runs:       d.runCount.Load(),
		LastStatus: d.lastStatus,
		LastRunDir: d.lastRunDir,
		LastError:  d.lastErr,
	}
	if !d.lastRun.IsZero() {
		h.LastRun = d.lastRun.UTC().Format(time.RFC3339)
	}
	switch d.lastStatus {
	case StatusSuccess:
		h.Status = "healthy"
	case StatusFailure:
		h.Status = "degraded"
	}
	return h
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status     string `json:"status"`
	Uptime     int64  `json:"uptime_seconds"`
	Runs       int64  `json:"runs"`
	LastRun    string `json:"last_run,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	LastRunDir string `json:"last_run_dir,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// RunCount returns total runs started
func (d *Daemon) RunCount() int64 {
	return d.runCount.Load()
}
