// Package identity resolves the caller identity of the configured credentials.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver looks up who the run is acting as.
type Resolver struct {
	client STSAPI
}

// NewResolver creates a resolver over client.
func NewResolver(client STSAPI) *Resolver {
	return &Resolver{client: client}
}

// FromConfig creates a resolver with an STS client built from cfg.
func FromConfig(cfg aws.Config) *Resolver {
	return NewResolver(sts.NewFromConfig(cfg))
}

// Resolve calls GetCallerIdentity. Any error means the credentials are unusable.
func (r *Resolver) Resolve(ctx context.Context) (resource.CallerIdentity, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return resource.CallerIdentity{}, fmt.Errorf("get caller identity: %w", err)
	}
	return resource.CallerIdentity{
		UserID:  aws.ToString(out.UserId),
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
	}, nil
}
