package serpstat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/FranksOps/kwscout/pkg/ratelimit"
)

type memJournal struct {
	mu      sync.Mutex
	records []*storage.CallRecord
}

func (m *memJournal) Save(ctx context.Context, rec *storage.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memJournal) Query(ctx context.Context, f storage.Filter) ([]*storage.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.CallRecord(nil), m.records...), nil
}

func (m *memJournal) Close() error { return nil }

func newTestClient(t *testing.T, url string, journal storage.Backend) *Client {
	t.Helper()
	c, err := New(Config{
		Endpoint: url,
		Token:    "secret",
		Timeout:  time.Second,
		Limiter:  ratelimit.NewPacer(0, 0),
		Journal:  journal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNew_MissingToken(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestCall_Request(t *testing.T) {
	var got struct {
		ID     int            `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Token") != "secret" {
			t.Errorf("expected Token header, got %q", r.Header.Get("Token"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"id":"1","result":{"data":[{"keyword":"sko"}]}}`))
	}))
	defer ts.Close()

	journal := &memJournal{}
	c := newTestClient(t, ts.URL, journal)

	resp, err := c.Call(context.Background(), MethodKeywordsInfo, Params{"keywords": []string{"sko"}, "se": "g_dk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID != 1 || got.Method != MethodKeywordsInfo {
		t.Errorf("unexpected envelope: id=%d method=%s", got.ID, got.Method)
	}
	if got.Params["se"] != "g_dk" {
		t.Errorf("expected se param, got %v", got.Params)
	}

	var result struct {
		Data []struct {
			Keyword string `json:"keyword"`
		} `json:"data"`
	}
	ok, err := resp.Decode(&result)
	if err != nil || !ok {
		t.Fatalf("Decode() = %v, %v", ok, err)
	}
	if len(result.Data) != 1 || result.Data[0].Keyword != "sko" {
		t.Errorf("unexpected result %+v", result)
	}

	if len(journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(journal.records))
	}
	rec := journal.records[0]
	if rec.Outcome != storage.OutcomeOK || rec.Keyword != "sko" || rec.StatusCode != http.StatusOK {
		t.Errorf("unexpected journal record %+v", rec)
	}
	if rec.ID == "" {
		t.Error("expected journal record ID")
	}
}

func TestCall_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	journal := &memJournal{}
	c := newTestClient(t, ts.URL, journal)

	_, err := c.Call(context.Background(), MethodKeywordFullTop, Params{"keyword": "sko"})
	if KindOf(err) != KindUpstream {
		t.Fatalf("expected KindUpstream, got %v", err)
	}

	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if serr.StatusCode != http.StatusTooManyRequests || serr.Method != MethodKeywordFullTop {
		t.Errorf("unexpected error fields %+v", serr)
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != storage.OutcomeError {
		t.Errorf("expected one error journal record, got %+v", journal.records)
	}
}

func TestCall_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	journal := &memJournal{}
	c, err := New(Config{
		Endpoint: ts.URL,
		Token:    "secret",
		Timeout:  20 * time.Millisecond,
		Limiter:  ratelimit.NewPacer(0, 0),
		Journal:  journal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Call(context.Background(), MethodRelatedKeywords, Params{"keyword": "sko"})
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", err)
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != storage.OutcomeTimeout {
		t.Errorf("expected one timeout journal record, got %+v", journal.records)
	}
}

func TestCall_RPCError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1","error":{"code":-32602,"message":"Invalid token"}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)

	_, err := c.Call(context.Background(), MethodKeywordsInfo, Params{"keywords": []string{"sko"}})
	if KindOf(err) != KindUpstream {
		t.Fatalf("expected KindUpstream, got %v", err)
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Errorf("expected wrapped RPCError, got %v", err)
	}
}

func TestCall_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil)

	_, err := c.Call(context.Background(), MethodKeywordsInfo, nil)
	if KindOf(err) != KindUpstream {
		t.Fatalf("expected KindUpstream, got %v", err)
	}
	if strings.Contains(err.Error(), "status") {
		t.Errorf("decode failure on a 200 response should not mention the status: %v", err)
	}
	var serr *Error
	if errors.As(err, &serr) && serr.StatusCode != http.StatusOK {
		t.Errorf("expected StatusCode 200 kept on the error, got %d", serr.StatusCode)
	}
}

func TestError_Message(t *testing.T) {
	httpErr := &Error{Kind: KindUpstream, Method: MethodKeywordsInfo, StatusCode: 502, Err: errors.New("unexpected status Bad Gateway")}
	if !strings.Contains(httpErr.Error(), "status 502") {
		t.Errorf("expected status in message, got %q", httpErr.Error())
	}

	decodeErr := &Error{Kind: KindUpstream, Method: MethodKeywordsInfo, StatusCode: 200, Err: errors.New("decode response: bad")}
	want := "serpstat: " + MethodKeywordsInfo + " failed: decode response: bad"
	if decodeErr.Error() != want {
		t.Errorf("Error() = %q, want %q", decodeErr.Error(), want)
	}
}

func TestCall_Pacing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{}}`))
	}))
	defer ts.Close()

	c, err := New(Config{
		Endpoint: ts.URL,
		Token:    "secret",
		Limiter:  ratelimit.NewPacer(60*time.Millisecond, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if _, err := c.Call(context.Background(), MethodKeywordsInfo, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected call to hold for the pacing interval, returned after %v", elapsed)
	}
}

func TestCall_CancelledBeforeSend(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer ts.Close()

	journal := &memJournal{}
	c := newTestClient(t, ts.URL, journal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, MethodKeywordsInfo, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if hits != 0 {
		t.Errorf("expected no request to be sent, got %d", hits)
	}
	if len(journal.records) != 0 {
		t.Errorf("expected no journal record for an unsent call, got %d", len(journal.records))
	}
}

func TestResponse_DecodeEmpty(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`} {
		r := &Response{Result: json.RawMessage(raw)}
		var v map[string]any
		ok, err := r.Decode(&v)
		if ok || err != nil {
			t.Errorf("Decode(%q) = %v, %v; want false, nil", raw, ok, err)
		}
	}
}

func TestKindOf(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), NoData(MethodKeywordsInfo, "sko"))
	if KindOf(wrapped) != KindNoData {
		t.Errorf("expected KindNoData through wrapping, got %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("expected zero Kind for foreign errors")
	}
	if NoData("m", "sko").Error() != `serpstat: no data for keyword "sko"` {
		t.Errorf("unexpected message %q", NoData("m", "sko").Error())
	}
}
