// Package aws collects the account inventory from the AWS control plane.
package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// DefaultGlobalRegion is used for account-wide services when none is configured.
const DefaultGlobalRegion = "us-east-1"

// Options tunes how provider calls are issued.
type Options struct {
	GlobalRegion      string
	RequestsPerSecond float64
	CallTimeout       time.Duration
}

// Collector issues the read-only enumeration calls for one account.
type Collector struct {
	cfg     aws.Config
	clients ClientFactory
	opts    Options
}

// New creates a Collector. A nil factory uses NewClientSet.
func New(cfg aws.Config, factory ClientFactory, opts Options) *Collector {
	if factory == nil {
		factory = NewClientSet
	}
	if opts.GlobalRegion == "" {
		opts.GlobalRegion = DefaultGlobalRegion
	}
	return &Collector{cfg: cfg, clients: factory, opts: opts}
}

// newCaller returns a fresh Caller so regions never share a limiter.
func (c *Collector) newCaller() *Caller {
	return NewCaller(c.opts.RequestsPerSecond, c.opts.CallTimeout)
}

// categoryFunc collects one category. A non-nil CallError is a provider
// fault; a non-nil error is anything else.
type categoryFunc func(ctx context.Context) ([]resource.Record, *resource.CallError, error)

type categoryScanner struct {
	category resource.Category
	collect  categoryFunc
}

// describe wraps a single call whose output holds the whole category.
func describe[O, T any](c *Caller, call func(context.Context) (O, error), items func(O) []T) categoryFunc {
	return func(ctx context.Context) ([]resource.Record, *resource.CallError, error) {
		res, err := Call(ctx, c, call)
		if err != nil {
			return nil, nil, err
		}
		if !res.OK() {
			return nil, res.Err, nil
		}
		records, err := resource.FromValues(items(res.Value))
		return records, nil, err
	}
}

// paginate wraps a paged operation. newPager is invoked per collection since
// SDK paginators are single use.
func paginate[O, T any](c *Caller, pager func() Pager[O], items func(O) []T) categoryFunc {
	return func(ctx context.Context) ([]resource.Record, *resource.CallError, error) {
		values, callErr, err := Paginate(ctx, c, pager(), items)
		if err != nil || callErr != nil {
			return nil, callErr, err
		}
		records, err := resource.FromValues(values)
		return records, nil, err
	}
}

func logCategoryFailure(scope string, category resource.Category, callErr *resource.CallError) {
	log.Warn().
		Str("scope", scope).
		Str("category", string(category)).
		Str("code", callErr.Code).
		Str("error_message", callErr.Message).
		Msg("category collection failed")
}
