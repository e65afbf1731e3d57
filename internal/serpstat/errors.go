package serpstat

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed upstream lookup.
type Kind int

const (
	// KindUpstream covers transport failures, non-2xx statuses, undecodable
	// bodies and JSON-RPC error objects.
	KindUpstream Kind = iota + 1
	// KindTimeout is a call that hit the client timeout or a deadline.
	KindTimeout
	// KindNoData is a successful call that returned no records for the keyword.
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream_error"
	case KindTimeout:
		return "upstream_timeout"
	case KindNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by Client and the keyword lookups.
type Error struct {
	Kind       Kind
	Method     string
	Keyword    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("serpstat: %s timed out", e.Method)
	case KindNoData:
		return fmt.Sprintf("serpstat: no data for keyword %q", e.Keyword)
	}
	if e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299) {
		return fmt.Sprintf("serpstat: %s failed with status %d: %v", e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("serpstat: %s failed: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// NoData builds the error for a lookup that returned zero records.
func NoData(method, keyword string) *Error {
	return &Error{Kind: KindNoData, Method: method, Keyword: keyword}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
