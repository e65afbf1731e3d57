package storage

import (
	"context"
	"time"
)

// Call outcomes recorded in CallRecord.Outcome.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// CallRecord describes one upstream API call. Response bodies are never kept.
type CallRecord struct {
	ID         string        `json:"id"`
	Method     string        `json:"method"`
	Keyword    string        `json:"keyword"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	Outcome    string        `json:"outcome"`
	CreatedAt  time.Time     `json:"created_at"`
	Error      string        `json:"error,omitempty"`
}

// Filter allows querying for specific CallRecords.
type Filter struct {
	Method  string
	Outcome string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match reports whether r passes the method, outcome and since filters.
// Backends without a query engine use it to filter in memory.
func (f Filter) Match(r *CallRecord) bool {
	if f.Method != "" && r.Method != f.Method {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page orders matched records newest first and applies offset and limit.
// records must be in insertion order.
func (f Filter) Page(records []*CallRecord) []*CallRecord {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*CallRecord{}
		}
		records = records[f.Offset:]
	}

	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}

	return records
}

// Backend defines the interface for storing and querying the call journal.
type Backend interface {
	Save(ctx context.Context, record *CallRecord) error
	Query(ctx context.Context, filter Filter) ([]*CallRecord, error)
	Close() error
}
