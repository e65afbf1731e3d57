package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS upstream_calls (
	id TEXT PRIMARY KEY,
	method TEXT NOT NULL,
	keyword TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS upstream_calls_created_at ON upstream_calls (created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.CallRecord) error {
	query := `
	INSERT INTO upstream_calls (
		id, method, keyword, status_code, duration_ms, outcome, created_at, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
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
		return fmt.Errorf("sqlite: insert call: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.CallRecord, error) {
	query := `SELECT id, method, keyword, status_code, duration_ms, outcome, created_at, error FROM upstream_calls WHERE 1=1`
	args := []any{}

	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, filter.Method)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, filter.Outcome)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT.
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query calls: %w", err)
	}
	defer rows.Close()

	var results []*storage.CallRecord
	for rows.Next() {
		var r storage.CallRecord
		var durationMs int64
		var errText sql.NullString

		err := rows.Scan(
			&r.ID, &r.Method, &r.Keyword, &r.StatusCode,
			&durationMs, &r.Outcome, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan call: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Error = errText.String
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate calls: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
