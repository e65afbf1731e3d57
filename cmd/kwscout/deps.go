package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/kwscout/internal/config"
	"github.com/FranksOps/kwscout/internal/keyword"
	"github.com/FranksOps/kwscout/internal/pageaudit"
	"github.com/FranksOps/kwscout/internal/pipeline"
	"github.com/FranksOps/kwscout/internal/serpstat"
	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/FranksOps/kwscout/internal/storage/csvbackend"
	"github.com/FranksOps/kwscout/internal/storage/jsonbackend"
	"github.com/FranksOps/kwscout/internal/storage/postgres"
	"github.com/FranksOps/kwscout/internal/storage/sqlite"
	"github.com/FranksOps/kwscout/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// deps holds the wired components of an analysis run and the resources to
// release afterwards.
type deps struct {
	pipeline *pipeline.Pipeline
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// openJournal opens the configured call journal, or returns nil for "none".
func openJournal(ctx context.Context, cfg config.Journal) (storage.Backend, error) {
	switch cfg.Backend {
	case config.JournalNone, "":
		return nil, nil
	case config.JournalSQLite:
		return sqlite.New(cfg.DSN)
	case config.JournalPostgres:
		return postgres.New(ctx, cfg.DSN)
	case config.JournalJSON:
		return jsonbackend.New(cfg.DSN)
	case config.JournalCSV:
		return csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

// newLimiter builds the pacing strategy shared by every upstream call of
// this process.
func newLimiter(ctx context.Context, cfg config.RateLimit, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	switch cfg.Mode {
	case config.ModeToken:
		return ratelimit.NewTokenBucket(cfg.Interval, cfg.Burst), func() {}, nil
	case config.ModeRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis pacer: ping %s: %w", cfg.RedisAddr, err)
		}
		p := ratelimit.NewRedisPacer(client, ratelimit.RedisConfig{Key: cfg.RedisKey, Interval: cfg.Interval})
		logger.Info("using redis pacer", "addr", cfg.RedisAddr, "key", cfg.RedisKey, "interval", cfg.Interval)
		return p, func() {
			p.Close()
			_ = client.Close()
		}, nil
	default:
		return ratelimit.NewPacer(cfg.Interval, cfg.Jitter), func() {}, nil
	}
}

// buildDeps wires the Serpstat client, lookups and pipeline from cfg.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	if err := cfg.ValidateUpstream(); err != nil {
		return nil, err
	}

	d := &deps{}

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if journal != nil {
		d.closers = append(d.closers, func() { _ = journal.Close() })
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, closeLimiter)

	client, err := serpstat.New(serpstat.Config{
		Endpoint: cfg.Serpstat.Endpoint,
		Token:    cfg.Serpstat.Token,
		Timeout:  cfg.Serpstat.Timeout,
		Limiter:  limiter,
		Journal:  journal,
		Logger:   logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	se := cfg.Serpstat.SearchEngine
	p := &pipeline.Pipeline{
		Metrics:  keyword.NewFetcher(client, se),
		Ranks:    keyword.NewLocator(client, se),
		Related:  keyword.NewExpander(client, se, cfg.Serpstat.RelatedLimit),
		TopN:     cfg.Analysis.TopN,
		FruitMin: cfg.Analysis.FruitMin,
		FruitMax: cfg.Analysis.FruitMax,
		Logger:   logger,
	}

	if cfg.Audit.Enabled {
		auditor, err := pageaudit.New(pageaudit.Config{
			Timeout:       cfg.Audit.Timeout,
			UserAgent:     cfg.Audit.UserAgent,
			RespectRobots: cfg.Audit.RespectRobots,
			Logger:        logger,
		})
		if err != nil {
			d.Close()
			return nil, err
		}
		p.Auditor = auditor
		p.AuditConcurrency = cfg.Audit.Concurrency
	}

	d.pipeline = p
	return d, nil
}
