// Package pageaudit checks how well a ranking landing page targets its
// keyword.
package pageaudit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/kwscout/internal/analyzer"
	"github.com/FranksOps/kwscout/pkg/httpclient"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultUserAgent    = "kwscout-audit/1.0 (+https://github.com/FranksOps/kwscout)"
	DefaultMaxBodyBytes = 5 << 20

	maxSentences = 3
)

// ErrDisallowed is returned when robots.txt forbids fetching the page.
var ErrDisallowed = errors.New("pageaudit: disallowed by robots.txt")

// Config configures an Auditor.
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	RespectRobots bool
	MaxBodyBytes  int64
	Transport     http.RoundTripper
	Logger        *slog.Logger
}

// Report summarizes keyword usage on one page.
type Report struct {
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Title       string    `json:"title"`
	Headings    []string  `json:"h1"`
	InTitle     bool      `json:"keyword_in_title"`
	InHeading   bool      `json:"keyword_in_h1"`
	Occurrences int       `json:"occurrences"`
	Sentences   []string  `json:"sentences,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Auditor fetches landing pages and reports on keyword placement. It is safe
// for concurrent use.
type Auditor struct {
	cfg    Config
	client *httpclient.Client
	robots *robotsCache
	logger *slog.Logger
}

// New creates an Auditor.
func New(cfg Config) (*Auditor, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		Transport:    cfg.Transport,
		Header: http.Header{
			"User-Agent": {cfg.UserAgent},
			"Accept":     {"text/html,application/xhtml+xml"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pageaudit: %w", err)
	}

	a := &Auditor{cfg: cfg, client: client, logger: cfg.Logger}
	if cfg.RespectRobots {
		a.robots = newRobotsCache(client, cfg.Logger)
	}
	return a, nil
}

// Audit fetches pageURL and reports where keyword appears on it.
func (a *Auditor) Audit(ctx context.Context, pageURL, keyword string) (*Report, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("pageaudit: invalid url %q", pageURL)
	}

	if a.robots != nil && !a.robots.allowed(ctx, u, a.cfg.UserAgent) {
		return nil, ErrDisallowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("pageaudit: build request: %w", err)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pageaudit: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pageaudit: read %s: %w", pageURL, err)
	}

	report := &Report{
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		Headings:   []string{},
		FetchedAt:  time.Now().UTC(),
	}
	if resp.StatusCode >= 400 {
		return report, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pageaudit: parse %s: %w", pageURL, err)
	}

	lowerKW := strings.ToLower(strings.TrimSpace(keyword))

	report.Title = collapse(doc.Find("title").First().Text())
	report.InTitle = lowerKW != "" && strings.Contains(strings.ToLower(report.Title), lowerKW)

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		h := collapse(s.Text())
		if h == "" {
			return
		}
		report.Headings = append(report.Headings, h)
		if lowerKW != "" && strings.Contains(strings.ToLower(h), lowerKW) {
			report.InHeading = true
		}
	})

	doc.Find("script, style, noscript").Remove()
	text := collapse(doc.Find("body").Text())

	if matches := analyzer.FindTermMatches(text, []string{keyword}, maxSentences); len(matches) > 0 {
		report.Occurrences = matches[0].Count
		report.Sentences = matches[0].Sentences
	}

	a.logger.Debug("audited landing page",
		"url", pageURL,
		"keyword", keyword,
		"status", resp.StatusCode,
		"occurrences", report.Occurrences,
	)
	return report, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
