package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if KWSCOUT_TEST_PG_DSN is set
	dsn := os.Getenv("KWSCOUT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: KWSCOUT_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	rec := &storage.CallRecord{
		ID:         uuid.NewString(),
		Method:     "pg-test." + uuid.NewString(),
		Keyword:    "løbesko",
		StatusCode: 200,
		Duration:   75 * time.Millisecond,
		Outcome:    storage.OutcomeOK,
		CreatedAt:  time.Now().UTC(),
	}

	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Method: rec.Method})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(results))
	}

	got := results[0]
	if got.ID != rec.ID {
		t.Errorf("Expected ID %s, got %s", rec.ID, got.ID)
	}
	if got.Keyword != rec.Keyword {
		t.Errorf("Expected Keyword %s, got %s", rec.Keyword, got.Keyword)
	}
	if got.Outcome != rec.Outcome {
		t.Errorf("Expected Outcome %s, got %s", rec.Outcome, got.Outcome)
	}
	if got.Duration.Milliseconds() != rec.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", rec.Duration, got.Duration)
	}
	if got.Error != "" {
		t.Errorf("Expected empty Error, got %q", got.Error)
	}

	none, err := b.Query(ctx, storage.Filter{Method: rec.Method, Outcome: storage.OutcomeTimeout})
	if err != nil {
		t.Fatalf("Failed to query by outcome: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no timeout records, got %d", len(none))
	}
}
