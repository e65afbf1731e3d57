package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket paces call starts with a token bucket instead of a trailing
// cooldown. Calls still run one at a time; burst lets a backlog start
// without waiting out the interval between each call.
type TokenBucket struct {
	limiter *rate.Limiter
	slot    chan struct{}
}

// NewTokenBucket allows one call per interval with the given burst.
// If interval is <= 0 the bucket never blocks.
func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(limit, burst),
		slot:    make(chan struct{}, 1),
	}
}

// Do implements Limiter.
func (t *TokenBucket) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.slot }()

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
