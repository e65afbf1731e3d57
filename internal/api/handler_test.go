package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FranksOps/kwscout/internal/keyword"
	"github.com/FranksOps/kwscout/internal/pipeline"
	"github.com/FranksOps/kwscout/internal/serp"
	"github.com/gin-gonic/gin"
)

type fakeAnalyzer struct {
	seeds  []string
	domain string
	err    error
	panic  bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, seeds []string, domain string) ([]pipeline.Result, error) {
	if f.panic {
		panic("boom")
	}
	f.seeds, f.domain = seeds, domain
	if f.err != nil {
		return nil, f.err
	}
	out := make([]pipeline.Result, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, pipeline.Result{
			Keyword: s,
			Primary: &pipeline.Record{Metrics: keyword.Metrics{Keyword: s}, Position: 3},
		})
	}
	return out, nil
}

func (f *fakeAnalyzer) FindRanking(ctx context.Context, seeds []string, domain string) ([]pipeline.Ranking, error) {
	f.seeds, f.domain = seeds, domain
	if f.err != nil {
		return nil, f.err
	}
	return []pipeline.Ranking{{Keyword: seeds[0], Position: serp.Position(7)}}, nil
}

func setupRouter(a Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(a, "p-lindberg.dk", nil), nil)
}

func TestKeywordAnalysis(t *testing.T) {
	fa := &fakeAnalyzer{}
	router := setupRouter(fa)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/keyword-analysis?keyword=Sko&keyword=+&keyword=l%C3%B8besko+herre", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if len(fa.seeds) != 2 || fa.seeds[0] != "Sko" || fa.seeds[1] != "løbesko herre" {
		t.Errorf("unexpected seeds %q", fa.seeds)
	}
	if fa.domain != "p-lindberg.dk" {
		t.Errorf("expected default domain, got %q", fa.domain)
	}

	var body []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(body) != 2 || body[0]["keyword"] != "Sko" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body[0]["lavthaengende_frugter"]; !ok {
		t.Errorf("expected lavthaengende_frugter key, got %v", body[0])
	}
}

func TestKeywordAnalysis_MissingKeyword(t *testing.T) {
	for _, target := range []string{"/keyword-analysis", "/keyword-analysis?keyword=", "/find-ranking-keywords?domain=x.dk"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		setupRouter(&fakeAnalyzer{}).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
		if w.Body.String() != `{"error":"Missing 'keyword' parameter"}` {
			t.Errorf("%s: unexpected body %s", target, w.Body.String())
		}
	}
}

func TestKeywordAnalysis_POST(t *testing.T) {
	fa := &fakeAnalyzer{}
	router := setupRouter(fa)

	body, _ := json.Marshal(map[string]any{"keywords": []string{"sko"}, "domain": "example.com"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/keyword-analysis", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if fa.domain != "example.com" || len(fa.seeds) != 1 {
		t.Errorf("unexpected call %q %q", fa.seeds, fa.domain)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/keyword-analysis", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestFindRankingKeywords(t *testing.T) {
	fa := &fakeAnalyzer{}
	router := setupRouter(fa)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/find-ranking-keywords?keyword=sko&domain=https://www.example.com/", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if fa.domain != "https://www.example.com/" {
		t.Errorf("domain should be passed through for normalization downstream, got %q", fa.domain)
	}
	if w.Body.String() != `[{"keyword":"sko","position":7}]` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestAnalyzerErrors(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/keyword-analysis?keyword=sko", nil)
	setupRouter(&fakeAnalyzer{err: errors.New("limiter closed")}).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	setupRouter(&fakeAnalyzer{panic: true}).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected recovered panic to yield 500, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	setupRouter(&fakeAnalyzer{}).ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}
