package report

import (
	stdjson "encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type column struct {
	header string
	value  func(r resource.Record) any
}

// sheetLayout maps one category onto a worksheet.
type sheetLayout struct {
	name     string
	category resource.Category
	regional bool
	columns  []column
}

func field(path ...string) func(resource.Record) any {
	return func(r resource.Record) any {
		return lookup(r, path...)
	}
}

func count(key string) func(resource.Record) any {
	return func(r resource.Record) any {
		items, _ := r[key].([]any)
		return len(items)
	}
}

func col(header string, path ...string) column {
	if len(path) == 0 {
		path = []string{header}
	}
	return column{header: header, value: field(path...)}
}

func lookup(r resource.Record, path ...string) any {
	var cur any = map[string]any(r)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// tagValue returns the value of an EC2 style Tags list entry.
func tagValue(key string) func(resource.Record) any {
	return func(r resource.Record) any {
		tags, _ := r["Tags"].([]any)
		for _, t := range tags {
			m, ok := t.(map[string]any)
			if !ok {
				continue
			}
			if k, _ := m["Key"].(string); k == key {
				v, _ := m["Value"].(string)
				return v
			}
		}
		return ""
	}
}

// firstAttachment reads a field of the first volume attachment.
func firstAttachment(key string) func(resource.Record) any {
	return func(r resource.Record) any {
		atts, _ := r["Attachments"].([]any)
		if len(atts) == 0 {
			return ""
		}
		m, _ := atts[0].(map[string]any)
		v, _ := m[key].(string)
		return v
	}
}

// cellValue converts a decoded JSON value into something a cell can hold.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, float64, int:
		return t
	case stdjson.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

var regionSheets = []sheetLayout{
	{name: "VPCs", category: resource.VPCs, regional: true, columns: []column{
		col("VpcId"), col("CidrBlock"), col("IsDefault"), col("State"),
	}},
	{name: "Subnets", category: resource.Subnets, regional: true, columns: []column{
		col("SubnetId"), col("VpcId"), col("CidrBlock"), col("AvailabilityZone"), col("State"),
	}},
	{name: "RouteTables", category: resource.RouteTables, regional: true, columns: []column{
		col("RouteTableId"), col("VpcId"),
		{header: "Associations", value: count("Associations")},
		{header: "Routes", value: count("Routes")},
	}},
	{name: "SecurityGroups", category: resource.SecurityGroups, regional: true, columns: []column{
		col("GroupId"), col("GroupName"), col("VpcId"),
		{header: "IngressRules", value: count("IpPermissions")},
		{header: "EgressRules", value: count("IpPermissionsEgress")},
		col("Description"),
	}},
	{name: "EC2", category: resource.Instances, regional: true, columns: []column{
		col("InstanceId"),
		{header: "Name", value: tagValue("Name")},
		col("InstanceType"), col("State", "State", "Name"), col("VpcId"), col("SubnetId"),
		col("PrivateIp", "PrivateIpAddress"), col("PublicIp", "PublicIpAddress"),
	}},
	{name: "LoadBalancers", category: resource.LoadBalancers, regional: true, columns: []column{
		col("LoadBalancerArn"), col("Name", "LoadBalancerName"), col("Type"), col("Scheme"),
		col("VpcId"), col("State", "State", "Code"), col("DNSName"),
	}},
	{name: "EBS_Volumes", category: resource.EBSVolumes, regional: true, columns: []column{
		col("VolumeId"), col("Type", "VolumeType"), col("SizeGiB", "Size"), col("State"),
		col("Encrypted"), col("Iops"), col("Throughput"), col("AvailabilityZone"),
		{header: "AttachedInstanceId", value: firstAttachment("InstanceId")},
		{header: "Device", value: firstAttachment("Device")},
	}},
	{name: "RDS_Instances", category: resource.RDSInstances, regional: true, columns: []column{
		col("DBInstanceIdentifier"), col("Engine"), col("EngineVersion"), col("DBInstanceClass"),
		col("Status", "DBInstanceStatus"), col("MultiAZ"), col("StorageEncrypted"),
		col("PubliclyAccessible"), col("BackupRetentionPeriod"), col("AllocatedStorage"),
		col("Endpoint", "Endpoint", "Address"),
	}},
	{name: "RDS_Clusters", category: resource.RDSClusters, regional: true, columns: []column{
		col("DBClusterIdentifier"), col("Engine"), col("EngineVersion"), col("Status"),
		col("MultiAZ"), col("Endpoint"), col("ReaderEndpoint"),
	}},
	{name: "AutoScaling", category: resource.AutoScalingGroups, regional: true, columns: []column{
		col("AutoScalingGroupName"), col("MinSize"), col("MaxSize"), col("DesiredCapacity"),
		col("VpcZoneIdentifier", "VPCZoneIdentifier"),
		col("LaunchTemplate", "LaunchTemplate", "LaunchTemplateName"),
		{header: "Instances", value: count("Instances")},
	}},
	{name: "DynamoDB", category: resource.DynamoDBTables, regional: true, columns: []column{
		col("TableName"), col("Status", "TableStatus"),
		col("BillingMode", "BillingModeSummary", "BillingMode"),
		col("ItemCount"), col("SizeBytes", "TableSizeBytes"), col("Arn", "TableArn"),
	}},
}

var globalSheets = []sheetLayout{
	{name: "S3_Buckets", category: resource.S3Buckets, columns: []column{
		col("Name"), col("CreationDate"), col("BucketRegion"),
	}},
	{name: "IAM_Users", category: resource.IAMUsers, columns: []column{
		col("UserName"), col("UserId"), col("Arn"), col("Path"), col("CreateDate"), col("PasswordLastUsed"),
	}},
}

func (s sheetLayout) headers() []any {
	out := make([]any, 0, len(s.columns)+1)
	if s.regional {
		out = append(out, "Region")
	}
	for _, c := range s.columns {
		out = append(out, c.header)
	}
	return out
}

func (s sheetLayout) row(region string, r resource.Record) []any {
	out := make([]any, 0, len(s.columns)+1)
	if s.regional {
		out = append(out, region)
	}
	for _, c := range s.columns {
		out = append(out, cellValue(c.value(r)))
	}
	return out
}

func joinOrEmpty(values []string) string {
	return strings.Join(values, ", ")
}
