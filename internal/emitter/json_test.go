package emitter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestJSONEmitter_WritesInventory(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewJSONEmitter(dir).Emit(context.Background(), testInventory()))

	inv := readJSON(t, filepath.Join(dir, InventoryFile))
	assert.Equal(t, []any{"us-east-1", "us-west-2"}, inv["regions"])

	runInfo := inv["run_info"].(map[string]any)
	assert.Equal(t, "run-1", runInfo["run_id"])
	assert.Equal(t, "CRIT", runInfo["account_name"])

	global := inv["global"].(map[string]any)
	assert.Equal(t, []any{"acme"}, global["account_aliases"])
	assert.Len(t, global["s3_buckets"], 2)
	assert.Equal(t, []any{}, global["iam_users"])
	assert.Contains(t, global, "iam_users_error")

	items := inv["items"].([]any)
	require.Len(t, items, 2)
	east := items[0].(map[string]any)
	assert.Equal(t, "us-east-1", east["region"])
	assert.Len(t, east["vpcs"], 2)
	assert.Equal(t, []any{}, east["subnets"])
	assert.Equal(t, "AccessDenied", east["subnets_error"].(map[string]any)["code"])
	west := items[1].(map[string]any)
	assert.Contains(t, west, "region_error")
}

func TestJSONEmitter_WritesSummary(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewJSONEmitter(dir).Emit(context.Background(), testInventory()))

	summary := readJSON(t, filepath.Join(dir, SummaryFile))
	assert.Equal(t, map[string]any{"s3_buckets": float64(2), "iam_users": float64(0)}, summary["global_counts"])
	regionCounts := summary["region_counts"].(map[string]any)
	assert.Equal(t, float64(2), regionCounts["vpcs"])
	assert.Equal(t, float64(1), regionCounts["instances"])
	assert.Equal(t, float64(0), regionCounts["subnets"])
	// subnets + iam_users + the substituted region
	assert.Equal(t, float64(3), summary["errors"])
	assert.Equal(t, "20250101T000000Z", summary["run_info"].(map[string]any)["timestamp_utc"])
}

func TestJSONEmitter_MissingDir(t *testing.T) {
	err := NewJSONEmitter(filepath.Join(t.TempDir(), "absent")).Emit(context.Background(), testInventory())
	require.Error(t, err)
}

func TestSummarize_NilSnapshot(t *testing.T) {
	s := Summarize(&resource.Inventory{RunInfo: resource.RunInfo{RunID: "r"}})

	assert.Equal(t, 0, s.Errors)
	assert.Equal(t, 0, s.GlobalCounts["s3_buckets"])
	assert.Empty(t, s.RegionCounts)
}

func TestExcelEmitter_WritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), ReportFile)

	require.NoError(t, NewExcelEmitter(path).Emit(context.Background(), testInventory()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExcelEmitter_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", ReportFile)

	err := NewExcelEmitter(path).Emit(context.Background(), testInventory())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build excel report")
}
