package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// CollectRegion builds the RegionRecord for one region. Provider faults are
// recorded per category; any other error aborts the region and is returned.
func (c *Collector) CollectRegion(ctx context.Context, region string) (resource.RegionRecord, error) {
	cs := c.clients(ConfigForRegion(c.cfg, region))
	caller := c.newCaller()
	rec := resource.NewRegionRecord(region)

	for _, s := range regionScanners(cs, caller) {
		records, callErr, err := s.collect(ctx)
		if err != nil {
			return rec, fmt.Errorf("collect %s in %s: %w", s.category, region, err)
		}
		if callErr != nil {
			logCategoryFailure(region, s.category, callErr)
			rec.Fail(s.category, callErr)
			continue
		}
		rec.Set(s.category, records)
	}

	tables, callErr, itemErrs, err := collectTables(ctx, caller, cs.DynamoDB)
	if err != nil {
		return rec, fmt.Errorf("collect %s in %s: %w", resource.DynamoDBTables, region, err)
	}
	if callErr != nil {
		logCategoryFailure(region, resource.DynamoDBTables, callErr)
		rec.Fail(resource.DynamoDBTables, callErr)
	} else {
		rec.Set(resource.DynamoDBTables, tables)
		rec.DescribeErrors = itemErrs
	}

	log.Debug().
		Str("region", region).
		Int("failed_categories", len(rec.Errors)).
		Msg("region collected")

	return rec, nil
}

// regionScanners lists every region category except DynamoDB tables, which
// need two phases.
func regionScanners(cs *ClientSet, c *Caller) []categoryScanner {
	return []categoryScanner{
		{resource.VPCs, describe(c,
			func(ctx context.Context) (*ec2.DescribeVpcsOutput, error) {
				return cs.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
			},
			func(o *ec2.DescribeVpcsOutput) []ec2types.Vpc { return o.Vpcs })},
		{resource.Subnets, describe(c,
			func(ctx context.Context) (*ec2.DescribeSubnetsOutput, error) {
				return cs.EC2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{})
			},
			func(o *ec2.DescribeSubnetsOutput) []ec2types.Subnet { return o.Subnets })},
		{resource.RouteTables, describe(c,
			func(ctx context.Context) (*ec2.DescribeRouteTablesOutput, error) {
				return cs.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{})
			},
			func(o *ec2.DescribeRouteTablesOutput) []ec2types.RouteTable { return o.RouteTables })},
		{resource.InternetGateways, describe(c,
			func(ctx context.Context) (*ec2.DescribeInternetGatewaysOutput, error) {
				return cs.EC2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{})
			},
			func(o *ec2.DescribeInternetGatewaysOutput) []ec2types.InternetGateway { return o.InternetGateways })},
		{resource.NATGateways, describe(c,
			func(ctx context.Context) (*ec2.DescribeNatGatewaysOutput, error) {
				return cs.EC2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{})
			},
			func(o *ec2.DescribeNatGatewaysOutput) []ec2types.NatGateway { return o.NatGateways })},
		{resource.SecurityGroups, describe(c,
			func(ctx context.Context) (*ec2.DescribeSecurityGroupsOutput, error) {
				return cs.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{})
			},
			func(o *ec2.DescribeSecurityGroupsOutput) []ec2types.SecurityGroup { return o.SecurityGroups })},
		{resource.NetworkInterfaces, describe(c,
			func(ctx context.Context) (*ec2.DescribeNetworkInterfacesOutput, error) {
				return cs.EC2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{})
			},
			func(o *ec2.DescribeNetworkInterfacesOutput) []ec2types.NetworkInterface { return o.NetworkInterfaces })},
		{resource.Instances, paginate(c,
			func() Pager[*ec2.DescribeInstancesOutput] {
				p := ec2.NewDescribeInstancesPaginator(cs.EC2, &ec2.DescribeInstancesInput{})
				return newPager(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) {
					return p.NextPage(ctx)
				})
			},
			flattenReservations)},
		{resource.EBSVolumes, paginate(c,
			func() Pager[*ec2.DescribeVolumesOutput] {
				p := ec2.NewDescribeVolumesPaginator(cs.EC2, &ec2.DescribeVolumesInput{})
				return newPager(p.HasMorePages, func(ctx context.Context) (*ec2.DescribeVolumesOutput, error) {
					return p.NextPage(ctx)
				})
			},
			func(o *ec2.DescribeVolumesOutput) []ec2types.Volume { return o.Volumes })},
		{resource.LoadBalancers, describe(c,
			func(ctx context.Context) (*elb.DescribeLoadBalancersOutput, error) {
				return cs.ELB.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{})
			},
			func(o *elb.DescribeLoadBalancersOutput) []elbtypes.LoadBalancer { return o.LoadBalancers })},
		{resource.TargetGroups, describe(c,
			func(ctx context.Context) (*elb.DescribeTargetGroupsOutput, error) {
				return cs.ELB.DescribeTargetGroups(ctx, &elb.DescribeTargetGroupsInput{})
			},
			func(o *elb.DescribeTargetGroupsOutput) []elbtypes.TargetGroup { return o.TargetGroups })},
		{resource.RDSInstances, describe(c,
			func(ctx context.Context) (*rds.DescribeDBInstancesOutput, error) {
				return cs.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{})
			},
			func(o *rds.DescribeDBInstancesOutput) []rdstypes.DBInstance { return o.DBInstances })},
		{resource.RDSClusters, describe(c,
			func(ctx context.Context) (*rds.DescribeDBClustersOutput, error) {
				return cs.RDS.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{})
			},
			func(o *rds.DescribeDBClustersOutput) []rdstypes.DBCluster { return o.DBClusters })},
		{resource.AutoScalingGroups, paginate(c,
			func() Pager[*autoscaling.DescribeAutoScalingGroupsOutput] {
				p := autoscaling.NewDescribeAutoScalingGroupsPaginator(cs.AutoScaling, &autoscaling.DescribeAutoScalingGroupsInput{})
				return newPager(p.HasMorePages, func(ctx context.Context) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
					return p.NextPage(ctx)
				})
			},
			func(o *autoscaling.DescribeAutoScalingGroupsOutput) []asgtypes.AutoScalingGroup { return o.AutoScalingGroups })},
	}
}

// flattenReservations lifts instances out of their reservation grouping.
func flattenReservations(o *ec2.DescribeInstancesOutput) []ec2types.Instance {
	var out []ec2types.Instance
	for _, r := range o.Reservations {
		out = append(out, r.Instances...)
	}
	return out
}

// collectTables lists table names, then describes each one. A listing fault
// fails the whole category; a describe fault only skips that table.
func collectTables(ctx context.Context, c *Caller, client DynamoDBAPI) ([]resource.Record, *resource.CallError, []resource.ItemError, error) {
	p := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	names, callErr, err := Paginate(ctx, c,
		newPager(p.HasMorePages, func(ctx context.Context) (*dynamodb.ListTablesOutput, error) {
			return p.NextPage(ctx)
		}),
		func(o *dynamodb.ListTablesOutput) []string { return o.TableNames })
	if err != nil || callErr != nil {
		return nil, callErr, nil, err
	}

	var (
		tables   []ddbtypes.TableDescription
		itemErrs []resource.ItemError
	)
	for _, name := range names {
		res, err := Call(ctx, c, func(ctx context.Context) (*dynamodb.DescribeTableOutput, error) {
			return client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("describe table %s: %w", name, err)
		}
		if !res.OK() {
			itemErrs = append(itemErrs, resource.ItemError{Name: name, CallError: *res.Err})
			continue
		}
		if res.Value.Table != nil {
			tables = append(tables, *res.Value.Table)
		}
	}

	records, err := resource.FromValues(tables)
	if err != nil {
		return nil, nil, nil, err
	}
	return records, nil, itemErrs, nil
}
