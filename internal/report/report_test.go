package report

import (
	stdjson "encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

func sampleInventory() *resource.Inventory {
	east := resource.NewRegionRecord("us-east-1")
	east.Set(resource.Instances, []resource.Record{{
		"InstanceId":       "i-0abc",
		"InstanceType":     "t3.micro",
		"State":            map[string]any{"Name": "running", "Code": float64(16)},
		"VpcId":            "vpc-1",
		"SubnetId":         "subnet-1",
		"PrivateIpAddress": "10.0.0.5",
		"Tags": []any{
			map[string]any{"Key": "Env", "Value": "prod"},
			map[string]any{"Key": "Name", "Value": "web"},
		},
	}})
	east.Set(resource.EBSVolumes, []resource.Record{{
		"VolumeId":    "vol-1",
		"VolumeType":  "gp3",
		"Size":        float64(20),
		"Encrypted":   true,
		"Attachments": []any{map[string]any{"InstanceId": "i-0abc", "Device": "/dev/xvda"}},
	}})
	east.Set(resource.SecurityGroups, []resource.Record{{
		"GroupId":             "sg-1",
		"GroupName":           "default",
		"IpPermissions":       []any{map[string]any{}, map[string]any{}},
		"IpPermissionsEgress": []any{map[string]any{}},
		"Description":         strings.Repeat("d", 80),
	}})
	east.Fail(resource.RDSInstances, &resource.CallError{Code: "AccessDenied", Message: "not authorized"})
	east.DescribeErrors = []resource.ItemError{{
		Name:      "orders",
		CallError: resource.CallError{Code: "ResourceNotFoundException", Message: "gone"},
	}}

	west := resource.NewFailedRegionRecord("us-west-2", assert.AnError)

	global := resource.NewGlobalRecord()
	global.SetAliases([]string{"acme", "acme-prod"})
	global.Set(resource.S3Buckets, []resource.Record{{"Name": "logs", "CreationDate": "2024-01-02T03:04:05Z"}})

	return &resource.Inventory{
		Snapshot: &resource.Snapshot{
			Regions: []string{"us-east-1", "us-west-2"},
			Global:  global,
			Items:   []resource.RegionRecord{east, west},
		},
		RunInfo: resource.RunInfo{
			TimestampUTC: "20250101T000000Z",
			Regions:      []string{"us-east-1", "us-west-2"},
			AccountName:  "CRIT",
			AccountIDEnv: "123456789012",
			STSIdentity:  resource.CallerIdentity{Account: "123456789012", Arn: "arn:aws:iam::123456789012:user/audit"},
		},
	}
}

func buildAndOpen(t *testing.T, inv *resource.Inventory) *excelize.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit_report.xlsx")
	require.NoError(t, Build(inv, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestBuild_SheetOrder(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	assert.Equal(t, []string{
		"VPCs", "Subnets", "RouteTables", "SecurityGroups", "EC2", "LoadBalancers",
		"EBS_Volumes", "RDS_Instances", "RDS_Clusters", "AutoScaling", "DynamoDB",
		"S3_Buckets", "IAM_Users", "Errors", "Run_Info", "Summary",
	}, f.GetSheetList())
}

func TestBuild_RegionRows(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	rows, err := f.GetRows("EC2")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Region", "InstanceId", "Name", "InstanceType", "State", "VpcId", "SubnetId", "PrivateIp", "PublicIp"}, rows[0])
	assert.Equal(t, []string{"us-east-1", "i-0abc", "web", "t3.micro", "running", "vpc-1", "subnet-1", "10.0.0.5"}, rows[1][:8])

	rows, err = f.GetRows("EBS_Volumes")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "20", rows[1][3])
	assert.Equal(t, "TRUE", rows[1][5])
	assert.Equal(t, "i-0abc", rows[1][9])
	assert.Equal(t, "/dev/xvda", rows[1][10])

	rows, err = f.GetRows("SecurityGroups")
	require.NoError(t, err)
	assert.Equal(t, "2", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
}

func TestBuild_EmptySheetsKeepHeaders(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	rows, err := f.GetRows("VPCs")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Region", "VpcId", "CidrBlock", "IsDefault", "State"}, rows[0])

	tables, err := f.GetTables("VPCs")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestBuild_TablesOnPopulatedSheets(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	tables, err := f.GetTables("EC2")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "EC2_Table", tables[0].Name)
	assert.Equal(t, TableStyle, tables[0].StyleName)
	assert.Equal(t, "A1:I2", tables[0].Range)
}

func TestBuild_ErrorsSheet(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	rows, err := f.GetRows("Errors")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Scope", "Category", "Code", "Message"}, rows[0])
	assert.Equal(t, []string{"us-east-1", "rds_db_instances", "AccessDenied", "not authorized"}, rows[1])
	assert.Equal(t, []string{"us-east-1", "dynamodb_tables:orders", "ResourceNotFoundException", "gone"}, rows[2])
	assert.Equal(t, "us-west-2", rows[3][0])
	assert.Equal(t, "RegionCollectionFailed", rows[3][2])
}

func TestBuild_RunInfoAndSummary(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	rows, err := f.GetRows("Run_Info")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"20250101T000000Z", "us-east-1, us-west-2", "CRIT", "123456789012",
		"123456789012", "arn:aws:iam::123456789012:user/audit", "acme, acme-prod",
	}, rows[1])

	rows, err = f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	counts := map[string]string{}
	for i, h := range rows[0] {
		counts[h] = rows[1][i]
	}
	assert.Equal(t, "1", counts["EC2"])
	assert.Equal(t, "0", counts["VPCs"])
	assert.Equal(t, "1", counts["S3_Buckets"])
	assert.Equal(t, "3", counts["Errors"])
}

func TestBuild_ColumnWidths(t *testing.T) {
	f := buildAndOpen(t, sampleInventory())

	width, err := f.GetColWidth("EC2", "A")
	require.NoError(t, err)
	assert.Equal(t, float64(len("us-east-1")+2), width)

	width, err = f.GetColWidth("SecurityGroups", "G")
	require.NoError(t, err)
	assert.Equal(t, float64(maxColumnWidth), width)
}

func TestBuild_NilSnapshot(t *testing.T) {
	f := buildAndOpen(t, &resource.Inventory{})

	rows, err := f.GetRows("Errors")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSafeTableName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "EC2_Table", want: "EC2_Table"},
		{in: "RDS Instances-Table", want: "RDS_Instances_Table"},
		{in: "2024 report", want: "_2024_report"},
		{in: "", want: "Sheet"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeTableName(tt.in), tt.in)
	}
	assert.Len(t, SafeTableName(strings.Repeat("a", 300)), 250)
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "vpc-1", want: "vpc-1"},
		{name: "large integer", in: stdjson.Number("9007199254740993"), want: int64(9007199254740993)},
		{name: "fraction", in: stdjson.Number("1.5"), want: 1.5},
		{name: "nested", in: map[string]any{"Name": "running"}, want: `{"Name":"running"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellValue(tt.in))
		})
	}
}
