package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/KiaraAya/aws-audit-tool/internal/config"
	"github.com/KiaraAya/aws-audit-tool/internal/daemon"
	"github.com/KiaraAya/aws-audit-tool/internal/emitter"
	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
)

var (
	serveInterval    time.Duration
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run audits on an interval and export metrics",
	Long: `Run awsaudit as a long-lived process.

The first run starts immediately, then one run per interval. Every
run writes its own timestamped directory like "awsaudit run".

Endpoints:
- /metrics  Prometheus metrics
- /health   last run status as JSON
- /-/healthy and /-/ready for probes

The CloudMapper webserver is never started in this mode.`,
	Example: `  awsaudit serve                        # Hourly runs, metrics on :9090
  awsaudit serve --interval 15m         # Every 15 minutes
  awsaudit serve --metrics-addr :2112   # Custom listen address`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Run interval (default from config)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics HTTP listen address (default from config)")
}

func applyServeFlags(cfg *config.Config) {
	if serveInterval > 0 {
		cfg.Scanner.Interval = serveInterval
	}
	if serveMetricsAddr != "" {
		cfg.Scanner.MetricsAddr = serveMetricsAddr
	}
	cfg.CloudMapper.Webserver = false
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyServeFlags)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider, err := telemetry.NewProvider(ctx, cfg.OTEL, promExporter)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	promEmit, err := emitter.NewPrometheusEmitter(nil)
	if err != nil {
		return fmt.Errorf("create prometheus emitter: %w", err)
	}
	defer func() { _ = promEmit.Close() }()

	r, err := newRunner(ctx, cfg, provider, promEmit)
	if err != nil {
		return err
	}

	metrics, err := daemon.NewDaemonMetrics()
	if err != nil {
		return fmt.Errorf("create daemon metrics: %w", err)
	}
	d, err := daemon.NewDaemon(daemon.Config{Interval: cfg.Scanner.Interval}, r, metrics)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Scanner.MetricsAddr,
		Handler:           d.Handler(promhttp.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Scanner.MetricsAddr).
		Dur("interval", cfg.Scanner.Interval).
		Strs("regions", cfg.AWS.Regions).
		Msg("awsaudit serving")

	var g run.Group
	{
		g.Add(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	{
		loopCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.Start(loopCtx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
