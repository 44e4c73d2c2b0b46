package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// CodeRequestTimeout is the code recorded when a call exceeds the per-call timeout.
const CodeRequestTimeout = "RequestTimeout"

// Caller carries the per-call policy applied to every provider invocation.
// The zero value and a nil *Caller apply none.
type Caller struct {
	limiter *rate.Limiter
	timeout time.Duration
}

// NewCaller returns a Caller that waits on a token bucket of requestsPerSecond
// (disabled when <= 0) and bounds each call by timeout (disabled when <= 0).
func NewCaller(requestsPerSecond float64, timeout time.Duration) *Caller {
	c := &Caller{timeout: timeout}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return c
}

// Result is the outcome of one provider call: either Value, or Err when the
// provider reported a fault.
type Result[T any] struct {
	Value T
	Err   *resource.CallError
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Call invokes fn and downgrades provider-reported faults to a failed Result.
// Any other error is returned as is.
func Call[T any](ctx context.Context, c *Caller, fn func(context.Context) (T, error)) (Result[T], error) {
	if c != nil && c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result[T]{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	callCtx := ctx
	if c != nil && c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	v, err := fn(callCtx)
	if err == nil {
		return Result[T]{Value: v}, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return Result[T]{Err: &resource.CallError{
			Detail:  err.Error(),
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
		}}, nil
	}

	// Only our own deadline is a category failure; the caller's is not.
	if callCtx != ctx && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Result[T]{Err: &resource.CallError{
			Detail:  err.Error(),
			Code:    CodeRequestTimeout,
			Message: fmt.Sprintf("call exceeded %s", c.timeout),
		}}, nil
	}

	return Result[T]{}, err
}
