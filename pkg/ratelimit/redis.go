package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLimiterClosed is returned by RedisPacer.Do after Close.
var ErrLimiterClosed = errors.New("ratelimit: limiter closed")

// Owner-checked delete and expire, so a slot whose lease ran out and was taken
// by another process is never touched.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	cooldownScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisConfig configures a RedisPacer.
type RedisConfig struct {
	// Key names the shared slot. Every process pacing the same upstream
	// account must use the same key.
	Key string
	// Interval is held after each successful call.
	Interval time.Duration
	// Lease bounds how long a crashed holder can block others.
	Lease time.Duration
	// PollInterval caps the wait between acquisition attempts.
	PollInterval time.Duration
}

// RedisPacer gives Pacer semantics across processes: one slot per key, held
// for Interval after each successful call.
type RedisPacer struct {
	client    *redis.Client
	cfg       RedisConfig
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisPacer creates a pacer backed by client. The caller owns client.
func NewRedisPacer(client *redis.Client, cfg RedisConfig) *RedisPacer {
	if cfg.Key == "" {
		cfg.Key = "kwscout:serpstat:pacer"
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &RedisPacer{
		client: client,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// Do implements Limiter.
func (p *RedisPacer) Do(ctx context.Context, fn func(context.Context) error) error {
	token := uuid.NewString()
	if err := p.acquire(ctx, token); err != nil {
		return err
	}

	// Release even when the caller's context is already cancelled.
	bg := context.WithoutCancel(ctx)

	if err := fn(ctx); err != nil {
		_ = releaseScript.Run(bg, p.client, []string{p.cfg.Key}, token).Err()
		return err
	}

	if p.cfg.Interval <= 0 {
		return releaseScript.Run(bg, p.client, []string{p.cfg.Key}, token).Err()
	}
	if err := cooldownScript.Run(bg, p.client, []string{p.cfg.Key}, token, p.cfg.Interval.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("ratelimit: start cooldown: %w", err)
	}
	return nil
}

func (p *RedisPacer) acquire(ctx context.Context, token string) error {
	for {
		select {
		case <-p.done:
			return ErrLimiterClosed
		default:
		}

		ok, err := p.client.SetNX(ctx, p.cfg.Key, token, p.cfg.Lease).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: acquire slot: %w", err)
		}
		if ok {
			return nil
		}

		wait, err := p.client.PTTL(ctx, p.cfg.Key).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: read slot ttl: %w", err)
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		if wait > p.cfg.PollInterval {
			wait = p.cfg.PollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.done:
			timer.Stop()
			return ErrLimiterClosed
		case <-timer.C:
		}
	}
}

// Close stops pending and future acquisitions. It does not close the client.
func (p *RedisPacer) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
