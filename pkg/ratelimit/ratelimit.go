package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter runs calls against a rate-limited resource.
type Limiter interface {
	// Do waits for permission to call fn and runs it. Errors from waiting
	// (context cancellation) are returned without calling fn.
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Pacer serializes calls and keeps its single slot held for a fixed interval
// after every successful call, so no two calls overlap and each caller starts
// at least interval after the previous success finished. Failed calls release
// the slot immediately.
// It is safe for concurrent use by multiple goroutines.
type Pacer struct {
	slot     chan struct{}
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
}

// NewPacer creates a pacer holding each successful call's slot for interval,
// plus a random extra of up to jitter*interval. If interval is <= 0 the pacer
// only serializes.
func NewPacer(interval time.Duration, jitter float64) *Pacer {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Pacer{
		slot:     make(chan struct{}, 1),
		interval: interval,
		jitter:   jitter,
	}
}

// Interval returns the base cooldown applied after successful calls.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Do implements Limiter.
func (p *Pacer) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := fn(ctx); err != nil {
		<-p.slot
		return err
	}

	cooldown := p.cooldown()
	if cooldown <= 0 {
		<-p.slot
		return nil
	}

	timer := time.NewTimer(cooldown)
	select {
	case <-timer.C:
		<-p.slot
	case <-ctx.Done():
		// The caller is gone, the next one still waits out the cooldown.
		go func() {
			<-timer.C
			<-p.slot
		}()
	}
	return nil
}

func (p *Pacer) cooldown() time.Duration {
	if p.interval <= 0 || p.jitter == 0 {
		return p.interval
	}
	// Only positive jitter: the interval is a floor imposed by the upstream.
	extra := time.Duration(float64(p.interval) * p.jitter * rand.Float64())
	return p.interval + extra
}
