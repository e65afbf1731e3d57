package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
)

const (
	info    = "SerpstatKeywordProcedure.getKeywordsInfo"
	fullTop = "SerpstatKeywordProcedure.getKeywordFullTop"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	records := []*storage.CallRecord{
		{Method: info, Keyword: "sko", StatusCode: 200, Duration: 100 * time.Millisecond, Outcome: storage.OutcomeOK, CreatedAt: now},
		{Method: fullTop, Keyword: "sko", StatusCode: 200, Duration: 300 * time.Millisecond, Outcome: storage.OutcomeOK, CreatedAt: now.Add(time.Second)},
		{Method: fullTop, Keyword: "støvler", StatusCode: 502, Duration: 200 * time.Millisecond, Outcome: storage.OutcomeError, CreatedAt: now.Add(2 * time.Second), Error: "bad gateway"},
		{Method: info, Keyword: "sandaler", Duration: 10 * time.Second, Outcome: storage.OutcomeTimeout, CreatedAt: now.Add(-time.Second)},
	}

	summary := GenerateSummary(records)

	if summary.TotalCalls != 4 {
		t.Errorf("expected 4 total calls, got %d", summary.TotalCalls)
	}
	if summary.TotalErrors != 1 {
		t.Errorf("expected 1 error, got %d", summary.TotalErrors)
	}
	if summary.TotalTimeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", summary.TotalTimeouts)
	}
	if summary.Keywords != 3 {
		t.Errorf("expected 3 distinct keywords, got %d", summary.Keywords)
	}
	if summary.StatusCodes[200] != 2 || summary.StatusCodes[502] != 1 {
		t.Errorf("unexpected status codes %v", summary.StatusCodes)
	}
	if _, ok := summary.StatusCodes[0]; ok {
		t.Error("calls without a status must not be counted as status 0")
	}

	ft := summary.ByMethod[fullTop]
	if ft == nil || ft.Calls != 2 || ft.Errors != 1 || ft.MeanDuration != 250*time.Millisecond {
		t.Errorf("unexpected full-top stats %+v", ft)
	}
	if in := summary.ByMethod[info]; in == nil || in.Timeouts != 1 {
		t.Errorf("unexpected info stats %+v", in)
	}

	if summary.MeanDuration != (10600*time.Millisecond)/4 {
		t.Errorf("unexpected mean duration %v", summary.MeanDuration)
	}
	if summary.Duration != 3*time.Second {
		t.Errorf("expected 3s window, got %v", summary.Duration)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	s := GenerateSummary(nil)
	if s.TotalCalls != 0 || s.ByMethod == nil || s.StatusCodes == nil {
		t.Errorf("expected zero summary with initialized maps, got %+v", s)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Summary{TotalCalls: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"total_calls": 5`) {
		t.Errorf("expected JSON to contain total_calls: 5, got %s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		TotalCalls:  5,
		TotalErrors: 1,
		ByMethod: map[string]*MethodStats{
			info: {Calls: 5, Errors: 1},
		},
		StatusCodes: map[int]int{200: 4, 500: 1},
	}
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Total Calls:   5") {
		t.Errorf("expected text to contain Total Calls: 5")
	}
	if !strings.Contains(out, info+": 5 calls, 1 errors") {
		t.Errorf("expected per-method line, got:\n%s", out)
	}
	if !strings.Contains(out, "200: 4") {
		t.Errorf("expected text to contain 200: 4")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		TotalCalls:    10,
		TotalTimeouts: 2,
		ByMethod: map[string]*MethodStats{
			"<script>": {Calls: 10, Timeouts: 2},
		},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>kwscout Upstream Call Report</title>") {
		t.Errorf("expected HTML title")
	}
	if strings.Contains(out, "<td><script></td>") || !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected method names to be escaped")
	}
}
