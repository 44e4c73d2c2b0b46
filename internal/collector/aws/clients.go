package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientSet holds the service clients for one region.
type ClientSet struct {
	EC2         EC2API
	ELB         ELBAPI
	RDS         RDSAPI
	AutoScaling AutoScalingAPI
	DynamoDB    DynamoDBAPI
	S3          S3API
	IAM         IAMAPI
}

// ClientFactory builds a ClientSet from a region-scoped config.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the default ClientFactory backed by the AWS SDK.
func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{
		EC2:         ec2.NewFromConfig(cfg),
		ELB:         elasticloadbalancingv2.NewFromConfig(cfg),
		RDS:         rds.NewFromConfig(cfg),
		AutoScaling: autoscaling.NewFromConfig(cfg),
		DynamoDB:    dynamodb.NewFromConfig(cfg),
		S3:          s3.NewFromConfig(cfg),
		IAM:         iam.NewFromConfig(cfg),
	}
}

// ConfigForRegion returns a copy of cfg pinned to region.
func ConfigForRegion(cfg aws.Config, region string) aws.Config {
	c := cfg.Copy()
	c.Region = region
	return c
}

// LoadConfig resolves credentials from the environment, optionally for a
// named shared-config profile.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
