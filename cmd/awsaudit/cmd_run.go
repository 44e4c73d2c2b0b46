package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KiaraAya/aws-audit-tool/internal/config"
	"github.com/KiaraAya/aws-audit-tool/internal/telemetry"
)

var (
	runRegions       string
	runMaxWorkers    int
	runOutputDir     string
	runNoCloudMapper bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect the account inventory once",
	Long: `Collect a read-only inventory of the account and write it to a
timestamped run directory.

Each run writes:
- sts_identity.json, inventory.json, findings_summary.json
- audit_report.xlsx with one sheet per resource category
- the CloudMapper site zip when CloudMapper is enabled

The run directory is uploaded to S3 when a bucket is configured.`,
	Example: `  awsaudit run                                  # Defaults and environment
  awsaudit run --config audit.toml              # Config file
  awsaudit run --regions us-east-1,eu-west-1    # Specific regions
  awsaudit run --max-workers 2 --no-cloudmapper # Slow and quiet`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runRegions, "regions", "r", "", "Comma-separated regions to collect")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Regions collected in parallel")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "Directory for run outputs")
	runCmd.Flags().BoolVar(&runNoCloudMapper, "no-cloudmapper", false, "Skip CloudMapper")
}

// applyRunFlags overrides configuration with flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if regions := config.SplitCSV(runRegions); len(regions) > 0 {
		cfg.AWS.Regions = regions
	}
	if cmd.Flags().Changed("max-workers") {
		cfg.AWS.MaxWorkers = runMaxWorkers
	}
	if runOutputDir != "" {
		cfg.Output.Dir = runOutputDir
	}
	if runNoCloudMapper {
		cfg.CloudMapper.Enabled = false
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) { applyRunFlags(cmd, c) })
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := telemetry.NewProvider(ctx, cfg.OTEL)
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

	r, err := newRunner(ctx, cfg, provider)
	if err != nil {
		return err
	}

	res, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), res)
	return nil
}
