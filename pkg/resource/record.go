package resource

import "sort"

// Category names one tracked resource type.
type Category string

// Region categories.
const (
	VPCs              Category = "vpcs"
	Subnets           Category = "subnets"
	RouteTables       Category = "route_tables"
	InternetGateways  Category = "internet_gateways"
	NATGateways       Category = "nat_gateways"
	SecurityGroups    Category = "security_groups"
	NetworkInterfaces Category = "network_interfaces"
	Instances         Category = "instances"
	EBSVolumes        Category = "ebs_volumes"
	LoadBalancers     Category = "load_balancers"
	TargetGroups      Category = "target_groups"
	RDSInstances      Category = "rds_db_instances"
	RDSClusters       Category = "rds_db_clusters"
	AutoScalingGroups Category = "autoscaling_groups"
	DynamoDBTables    Category = "dynamodb_tables"
)

// Global categories.
const (
	AccountAliases Category = "account_aliases"
	S3Buckets      Category = "s3_buckets"
	IAMUsers       Category = "iam_users"
)

// RegionCategories lists every region category in collection order.
var RegionCategories = []Category{
	VPCs, Subnets, RouteTables, InternetGateways, NATGateways,
	SecurityGroups, NetworkInterfaces, Instances, EBSVolumes,
	LoadBalancers, TargetGroups, RDSInstances, RDSClusters,
	AutoScalingGroups, DynamoDBTables,
}

// GlobalCategories lists every account-wide category.
var GlobalCategories = []Category{AccountAliases, S3Buckets, IAMUsers}

// ErrorKey is the JSON key holding a category's error record.
func (c Category) ErrorKey() string {
	return string(c) + "_error"
}

const describeErrorsKey = "dynamodb_tables_describe_errors"

// RegionRecord is the inventory of a single region.
type RegionRecord struct {
	Region         string
	Resources      map[Category][]Record
	Errors         map[Category]*CallError
	DescribeErrors []ItemError
	Failure        *CallError
}

// NewRegionRecord returns a record with every region category present and empty.
func NewRegionRecord(region string) RegionRecord {
	rec := RegionRecord{
		Region:    region,
		Resources: make(map[Category][]Record, len(RegionCategories)),
		Errors:    make(map[Category]*CallError),
	}
	for _, c := range RegionCategories {
		rec.Resources[c] = []Record{}
	}
	return rec
}

// NewFailedRegionRecord returns the record substituted for a region whose
// collection terminated abnormally.
func NewFailedRegionRecord(region string, err error) RegionRecord {
	rec := NewRegionRecord(region)
	rec.Failure = NewCallError("RegionCollectionFailed", err)
	return rec
}

// Set stores the records collected for a category and clears any error.
func (r *RegionRecord) Set(c Category, records []Record) {
	if records == nil {
		records = []Record{}
	}
	r.Resources[c] = records
	delete(r.Errors, c)
}

// Fail marks a category as failed. Its list is emptied.
func (r *RegionRecord) Fail(c Category, err *CallError) {
	r.Resources[c] = []Record{}
	r.Errors[c] = err
}

// Failed reports whether the region was substituted.
func (r *RegionRecord) Failed() bool {
	return r.Failure != nil
}

// MarshalJSON flattens the record into one object keyed by category.
func (r RegionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(RegionCategories)+len(r.Errors)+3)
	out["region"] = r.Region
	for _, c := range RegionCategories {
		records := r.Resources[c]
		if records == nil {
			records = []Record{}
		}
		out[string(c)] = records
	}
	for c, err := range r.Errors {
		out[c.ErrorKey()] = err
	}
	if len(r.DescribeErrors) > 0 {
		out[describeErrorsKey] = r.DescribeErrors
	}
	if r.Failure != nil {
		out["region_error"] = r.Failure
	}
	return json.Marshal(out)
}

// GlobalRecord is the account-wide inventory.
type GlobalRecord struct {
	AccountAliases []string
	Resources      map[Category][]Record
	Errors         map[Category]*CallError
	Failure        *CallError
}

// NewGlobalRecord returns a record with every global category present and empty.
func NewGlobalRecord() GlobalRecord {
	return GlobalRecord{
		AccountAliases: []string{},
		Resources: map[Category][]Record{
			S3Buckets: {},
			IAMUsers:  {},
		},
		Errors: make(map[Category]*CallError),
	}
}

// NewFailedGlobalRecord returns the record substituted when global
// collection terminated abnormally.
func NewFailedGlobalRecord(err error) GlobalRecord {
	rec := NewGlobalRecord()
	rec.Failure = NewCallError("GlobalCollectionFailed", err)
	return rec
}

// Set stores the records collected for a category and clears any error.
func (g *GlobalRecord) Set(c Category, records []Record) {
	if records == nil {
		records = []Record{}
	}
	g.Resources[c] = records
	delete(g.Errors, c)
}

// SetAliases stores the account aliases.
func (g *GlobalRecord) SetAliases(aliases []string) {
	if aliases == nil {
		aliases = []string{}
	}
	g.AccountAliases = aliases
	delete(g.Errors, AccountAliases)
}

// Fail marks a category as failed. Its list is emptied.
func (g *GlobalRecord) Fail(c Category, err *CallError) {
	if c == AccountAliases {
		g.AccountAliases = []string{}
	} else {
		g.Resources[c] = []Record{}
	}
	g.Errors[c] = err
}

// MarshalJSON flattens the record into one object keyed by category.
func (g GlobalRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(GlobalCategories)*2+1)
	aliases := g.AccountAliases
	if aliases == nil {
		aliases = []string{}
	}
	out[string(AccountAliases)] = aliases
	for _, c := range []Category{S3Buckets, IAMUsers} {
		records := g.Resources[c]
		if records == nil {
			records = []Record{}
		}
		out[string(c)] = records
	}
	for c, err := range g.Errors {
		out[c.ErrorKey()] = err
	}
	if g.Failure != nil {
		out["global_error"] = g.Failure
	}
	return json.Marshal(out)
}

// SortRegionRecords orders records by region identifier ascending.
func SortRegionRecords(records []RegionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Region < records[j].Region
	})
}
