package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

const globalScope = "global"

// CollectGlobal builds the account-wide GlobalRecord. Each category is
// collected independently of the others' outcome.
func (c *Collector) CollectGlobal(ctx context.Context) (resource.GlobalRecord, error) {
	cs := c.clients(ConfigForRegion(c.cfg, c.opts.GlobalRegion))
	caller := c.newCaller()
	rec := resource.NewGlobalRecord()

	aliases, err := Call(ctx, caller, func(ctx context.Context) (*iam.ListAccountAliasesOutput, error) {
		return cs.IAM.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	})
	if err != nil {
		return rec, fmt.Errorf("collect %s: %w", resource.AccountAliases, err)
	}
	if aliases.OK() {
		rec.SetAliases(aliases.Value.AccountAliases)
	} else {
		logCategoryFailure(globalScope, resource.AccountAliases, aliases.Err)
		rec.Fail(resource.AccountAliases, aliases.Err)
	}

	for _, s := range globalScanners(cs, caller) {
		records, callErr, err := s.collect(ctx)
		if err != nil {
			return rec, fmt.Errorf("collect %s: %w", s.category, err)
		}
		if callErr != nil {
			logCategoryFailure(globalScope, s.category, callErr)
			rec.Fail(s.category, callErr)
			continue
		}
		rec.Set(s.category, records)
	}

	return rec, nil
}

func globalScanners(cs *ClientSet, c *Caller) []categoryScanner {
	return []categoryScanner{
		{resource.S3Buckets, describe(c,
			func(ctx context.Context) (*s3.ListBucketsOutput, error) {
				return cs.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
			},
			func(o *s3.ListBucketsOutput) []s3types.Bucket { return o.Buckets })},
		{resource.IAMUsers, paginate(c,
			func() Pager[*iam.ListUsersOutput] {
				p := iam.NewListUsersPaginator(cs.IAM, &iam.ListUsersInput{})
				return newPager(p.HasMorePages, func(ctx context.Context) (*iam.ListUsersOutput, error) {
					return p.NextPage(ctx)
				})
			},
			func(o *iam.ListUsersOutput) []iamtypes.User { return o.Users })},
	}
}
