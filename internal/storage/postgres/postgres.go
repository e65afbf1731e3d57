package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS upstream_calls (
	id TEXT PRIMARY KEY,
	method TEXT NOT NULL,
	keyword TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	outcome TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS upstream_calls_created_at ON upstream_calls (created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.CallRecord) error {
	query := `
	INSERT INTO upstream_calls (
		id, method, keyword, status_code, duration_ms, outcome, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := b.pool.Exec(ctx, query,
		rec.ID,
		rec.Method,
		rec.Keyword,
		rec.StatusCode,
		rec.Duration.Milliseconds(),
		rec.Outcome,
		rec.CreatedAt,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert call: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.CallRecord, error) {
	query := `SELECT id, method, keyword, status_code, duration_ms, outcome, created_at, error FROM upstream_calls WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Method != "" {
		query += fmt.Sprintf(` AND method = $%d`, paramCount)
		args = append(args, filter.Method)
		paramCount++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(` AND outcome = $%d`, paramCount)
		args = append(args, filter.Outcome)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query calls: %w", err)
	}
	defer rows.Close()

	var results []*storage.CallRecord
	for rows.Next() {
		var r storage.CallRecord
		var durationMs int64
		var errText *string

		err := rows.Scan(
			&r.ID, &r.Method, &r.Keyword, &r.StatusCode,
			&durationMs, &r.Outcome, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan call: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		if errText != nil {
			r.Error = *errText
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate calls: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
