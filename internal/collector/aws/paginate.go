package aws

import (
	"context"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// Pager yields one page of a paged operation at a time.
type Pager[O any] interface {
	HasMorePages() bool
	NextPage(ctx context.Context) (O, error)
}

type pagerFuncs[O any] struct {
	more func() bool
	next func(context.Context) (O, error)
}

func (p pagerFuncs[O]) HasMorePages() bool                      { return p.more() }
func (p pagerFuncs[O]) NextPage(ctx context.Context) (O, error) { return p.next(ctx) }

// newPager adapts an SDK paginator, whose NextPage takes service options, to Pager.
func newPager[O any](more func() bool, next func(context.Context) (O, error)) Pager[O] {
	return pagerFuncs[O]{more: more, next: next}
}

// Paginate drains p and returns the items of every page. If any page fails
// with a provider fault, the pages already read are discarded and only the
// fault is returned.
func Paginate[O, T any](ctx context.Context, c *Caller, p Pager[O], items func(O) []T) ([]T, *resource.CallError, error) {
	var out []T
	for p.HasMorePages() {
		res, err := Call(ctx, c, p.NextPage)
		if err != nil {
			return nil, nil, err
		}
		if !res.OK() {
			return nil, res.Err, nil
		}
		out = append(out, items(res.Value)...)
	}
	return out, nil, nil
}
