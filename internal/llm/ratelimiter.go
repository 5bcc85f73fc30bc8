package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token bucket rate limiter.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps the given provider with a rate limiter
// that allows at most rpm requests per minute, with bursts of up to rpm.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// TimeoutProvider bounds every completion call with a deadline. Calls are
// attempted once.
type TimeoutProvider struct {
	provider Provider
	timeout  time.Duration
}

// NewTimeoutProvider wraps provider so each call is cancelled after timeout.
func NewTimeoutProvider(provider Provider, timeout time.Duration) Provider {
	return &TimeoutProvider{provider: provider, timeout: timeout}
}

func (t *TimeoutProvider) Name() string {
	return t.provider.Name()
}

func (t *TimeoutProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.provider.Complete(ctx, req)
}
