package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KiaraAya/aws-audit-tool/internal/config"
	"github.com/KiaraAya/aws-audit-tool/internal/runner"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

func init() {
	color.NoColor = true
}

func testResult() *runner.Result {
	ok := resource.NewRegionRecord("eu-west-1")
	denied := resource.NewRegionRecord("us-east-1")
	denied.Fail(resource.RDSInstances, &resource.CallError{Code: "AccessDenied", Message: "denied"})
	denied.Fail(resource.Subnets, &resource.CallError{Code: "Throttling"})
	denied.DescribeErrors = []resource.ItemError{{Name: "orders", CallError: resource.CallError{Code: "ResourceNotFoundException"}}}

	return &runner.Result{
		RunDir: "outputs/20250101T000000Z",
		Inventory: &resource.Inventory{Snapshot: &resource.Snapshot{
			Regions: []string{"eu-west-1", "us-east-1", "us-west-2"},
			Global:  resource.NewGlobalRecord(),
			Items: []resource.RegionRecord{
				ok,
				denied,
				resource.NewFailedRegionRecord("us-west-2", assert.AnError),
			},
		}},
	}
}

func TestPrintSummary_Errors(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, testResult())

	out := buf.String()
	assert.Contains(t, out, "Run completed. Outputs at: outputs/20250101T000000Z\n")
	assert.Contains(t, out, "4 collection errors")
	assert.Contains(t, out, "  us-east-1: rds_db_instances (AccessDenied), subnets (Throttling), 1 table describe errors\n")
	assert.Contains(t, out, "  us-west-2: RegionCollectionFailed\n")
	assert.NotContains(t, out, "eu-west-1:")
	assert.NotContains(t, out, "global:")
}

func TestPrintSummary_Clean(t *testing.T) {
	res := &runner.Result{
		RunDir:   "out/run",
		Uploaded: 4,
		Inventory: &resource.Inventory{Snapshot: &resource.Snapshot{
			Global: resource.NewGlobalRecord(),
			Items:  []resource.RegionRecord{resource.NewRegionRecord("us-east-1")},
		}},
	}

	var buf bytes.Buffer
	printSummary(&buf, res)

	assert.Equal(t, "Run completed. Outputs at: out/run\nUploaded 4 files\nNo collection errors\n", buf.String())
}

func TestPrintSummary_GlobalFailure(t *testing.T) {
	res := &runner.Result{
		RunDir: "out/run",
		Inventory: &resource.Inventory{Snapshot: &resource.Snapshot{
			Global: resource.NewFailedGlobalRecord(assert.AnError),
		}},
	}

	var buf bytes.Buffer
	printSummary(&buf, res)

	assert.Contains(t, buf.String(), "  global: GlobalCollectionFailed\n")
}

func TestApplyRunFlags(t *testing.T) {
	t.Cleanup(func() {
		runRegions, runMaxWorkers, runOutputDir, runNoCloudMapper = "", 0, "", false
	})

	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "")
	require.NoError(t, cmd.Flags().Set("max-workers", "3"))
	runRegions = "eu-west-1, ,eu-central-1"
	runOutputDir = "/tmp/audit"
	runNoCloudMapper = true

	cfg := config.Default()
	applyRunFlags(cmd, cfg)

	assert.Equal(t, []string{"eu-west-1", "eu-central-1"}, cfg.AWS.Regions)
	assert.Equal(t, 3, cfg.AWS.MaxWorkers)
	assert.Equal(t, "/tmp/audit", cfg.Output.Dir)
	assert.False(t, cfg.CloudMapper.Enabled)
}

func TestApplyRunFlags_UnsetKeepsConfig(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "")

	cfg := config.Default()
	applyRunFlags(cmd, cfg)

	assert.Equal(t, config.DefaultRegions, cfg.AWS.Regions)
	assert.Equal(t, 8, cfg.AWS.MaxWorkers)
	assert.Equal(t, "outputs", cfg.Output.Dir)
	assert.True(t, cfg.CloudMapper.Enabled)
}

func TestApplyServeFlags(t *testing.T) {
	t.Cleanup(func() { serveInterval, serveMetricsAddr = 0, "" })
	serveMetricsAddr = ":2112"

	cfg := config.Default()
	cfg.CloudMapper.Webserver = true
	applyServeFlags(cfg)

	assert.Equal(t, ":2112", cfg.Scanner.MetricsAddr)
	assert.Equal(t, "1h", cfg.Scanner.IntervalStr)
	assert.False(t, cfg.CloudMapper.Webserver)
}
