// Package pipeline orchestrates keyword analysis: seed lookups, related
// keyword expansion, scoring and selection.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/FranksOps/kwscout/internal/keyword"
	"github.com/FranksOps/kwscout/internal/metrics"
	"github.com/FranksOps/kwscout/internal/pageaudit"
	"github.com/FranksOps/kwscout/internal/serp"
	"golang.org/x/sync/errgroup"
)

// Defaults applied when the corresponding Pipeline field is zero.
const (
	// DefaultTopN is how many related keywords a Result keeps.
	DefaultTopN = 5
	// DefaultFruitMin and DefaultFruitMax bound the low-hanging fruit
	// positions, inclusive.
	DefaultFruitMin = 4
	DefaultFruitMax = 21
	// DefaultAuditConcurrency caps concurrent landing-page audits per seed.
	DefaultAuditConcurrency = 3
)

// ErrNoKeywords is returned when no seed keywords are given.
var ErrNoKeywords = errors.New("pipeline: no keywords given")

// MetricsFetcher looks up volume and difficulty for a keyword.
type MetricsFetcher interface {
	Fetch(ctx context.Context, kw string) (keyword.Metrics, error)
}

// RankFinder finds the hit where a domain ranks for a keyword.
type RankFinder interface {
	Find(ctx context.Context, kw, domain string) (serp.Hit, bool, error)
}

// Expander lists related keywords.
type Expander interface {
	Expand(ctx context.Context, kw string) ([]string, error)
}

// Auditor inspects a ranking landing page.
type Auditor interface {
	Audit(ctx context.Context, pageURL, kw string) (*pageaudit.Report, error)
}

// Record is a keyword's metrics together with where the domain ranks for it.
type Record struct {
	keyword.Metrics
	Position serp.Position `json:"position"`
	URL      string        `json:"url,omitempty"`
}

// Ranked is a scored related keyword.
type Ranked struct {
	Record
	Score float64 `json:"score"`
	// Audit is set only on low-hanging fruit with a ranking URL, and is the
	// same report wherever the keyword appears in a Result.
	Audit *pageaudit.Report `json:"audit,omitempty"`
}

// Result is the analysis of one seed keyword. When Error is set the other
// fields are empty.
type Result struct {
	Keyword         string   `json:"keyword"`
	Primary         *Record  `json:"primary,omitempty"`
	RelatedKeywords []Ranked `json:"related_keywords,omitempty"`
	LowHangingFruit []Ranked `json:"lavthaengende_frugter,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// MarshalJSON emits either the full analysis or {keyword, error}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Keyword string `json:"keyword"`
			Error   string `json:"error"`
		}{r.Keyword, r.Error})
	}

	related, fruit := r.RelatedKeywords, r.LowHangingFruit
	if related == nil {
		related = []Ranked{}
	}
	if fruit == nil {
		fruit = []Ranked{}
	}
	return json.Marshal(struct {
		Keyword         string   `json:"keyword"`
		Primary         *Record  `json:"primary"`
		RelatedKeywords []Ranked `json:"related_keywords"`
		LowHangingFruit []Ranked `json:"lavthaengende_frugter"`
	}{r.Keyword, r.Primary, related, fruit})
}

// Ranking is a seed keyword and the position the domain holds for it.
type Ranking struct {
	Keyword  string        `json:"keyword"`
	Position serp.Position `json:"position"`
}

// Score is volume minus difficulty, or 0 when either is missing.
func Score(m keyword.Metrics) float64 {
	if m.Volume == nil || m.Difficulty == nil {
		return 0
	}
	return float64(*m.Volume) - *m.Difficulty
}

// Pipeline runs keyword analyses. All upstream lookups of one call run
// sequentially; pacing across concurrent calls is the lookups' concern.
type Pipeline struct {
	Metrics MetricsFetcher
	Ranks   RankFinder
	Related Expander
	// Auditor is optional. When set, low-hanging fruit with a known ranking
	// URL gets a landing-page audit.
	Auditor Auditor

	TopN             int
	FruitMin         int
	FruitMax         int
	AuditConcurrency int

	Logger *slog.Logger
}

// Analyze analyzes each seed keyword against domain and returns one Result
// per seed in input order. A failing seed yields an error Result and does
// not stop the batch. The returned error is ErrNoKeywords or the context's
// error; on cancellation the results gathered so far are returned with it.
func (p *Pipeline) Analyze(ctx context.Context, seeds []string, domain string) ([]Result, error) {
	if len(seeds) == 0 {
		return nil, ErrNoKeywords
	}

	results := make([]Result, 0, len(seeds))
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := p.analyzeSeed(ctx, seed, domain)
		if res.Error != "" {
			metrics.RecordSeed("error")
		} else {
			metrics.RecordSeed("ok")
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) analyzeSeed(ctx context.Context, seed, domain string) Result {
	logger := p.logger().With("seed", seed)

	primary, err := p.resolve(ctx, seed, domain)
	if err != nil {
		logger.Warn("seed keyword lookup failed", "err", err)
		return Result{Keyword: seed, Error: err.Error()}
	}

	related, err := p.Related.Expand(ctx, seed)
	if err != nil {
		logger.Warn("related keyword expansion failed", "err", err)
		return Result{Keyword: seed, Error: err.Error()}
	}

	scored := make([]Ranked, 0, len(related))
	for _, kw := range related {
		if err := ctx.Err(); err != nil {
			return Result{Keyword: seed, Error: err.Error()}
		}

		rec, err := p.resolve(ctx, kw, domain)
		if err != nil {
			logger.Warn("skipping related keyword", "keyword", kw, "err", err)
			metrics.RelatedSkipped.Inc()
			continue
		}
		scored = append(scored, Ranked{Record: rec, Score: Score(rec.Metrics)})
	}

	if p.Auditor != nil {
		p.audit(ctx, scored)
	}
	fruit := LowHangingFruit(scored, p.fruitMin(), p.fruitMax())

	logger.Info("analyzed seed keyword",
		"related", len(scored),
		"skipped", len(related)-len(scored),
		"fruit", len(fruit),
	)

	return Result{
		Keyword:         seed,
		Primary:         &primary,
		RelatedKeywords: TopN(scored, p.topN()),
		LowHangingFruit: fruit,
	}
}

// resolve fetches metrics, then the ranking position, for one keyword.
func (p *Pipeline) resolve(ctx context.Context, kw, domain string) (Record, error) {
	m, err := p.Metrics.Fetch(ctx, kw)
	if err != nil {
		return Record{}, err
	}

	hit, found, err := p.Ranks.Find(ctx, kw, domain)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Metrics: m, Position: serp.NotFound}
	if found {
		rec.Position = serp.Position(hit.Position)
		rec.URL = hit.URL
	}
	return rec, nil
}

// audit attaches a landing-page report to every scored record that is
// low-hanging fruit and has a ranking URL. It runs before selection so the
// fruit and related_keywords entries for a keyword share one report.
func (p *Pipeline) audit(ctx context.Context, scored []Ranked) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.auditConcurrency())

	for i := range scored {
		if scored[i].URL == "" || !scored[i].Position.InRange(p.fruitMin(), p.fruitMax()) {
			continue
		}
		g.Go(func() error {
			report, err := p.Auditor.Audit(gctx, scored[i].URL, scored[i].Keyword)
			if err != nil {
				p.logger().Warn("landing page audit failed", "keyword", scored[i].Keyword, "url", scored[i].URL, "err", err)
				return nil
			}
			scored[i].Audit = report
			return nil
		})
	}
	_ = g.Wait()
}

// FindRanking returns the position of domain for each seed keyword, in
// input order. Seeds where the domain does not rank, or whose lookup fails,
// are omitted.
func (p *Pipeline) FindRanking(ctx context.Context, seeds []string, domain string) ([]Ranking, error) {
	if len(seeds) == 0 {
		return nil, ErrNoKeywords
	}

	out := make([]Ranking, 0, len(seeds))
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		hit, found, err := p.Ranks.Find(ctx, seed, domain)
		if err != nil {
			p.logger().Warn("ranking lookup failed", "seed", seed, "err", err)
			continue
		}

		pos := serp.Position(hit.Position)
		if !found || !pos.Found() {
			continue
		}
		out = append(out, Ranking{Keyword: seed, Position: pos})
	}
	return out, nil
}

// LowHangingFruit returns the records ranking within [min, max], in input
// order.
func LowHangingFruit(scored []Ranked, min, max int) []Ranked {
	out := make([]Ranked, 0)
	for _, r := range scored {
		if r.Position.InRange(min, max) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) topN() int {
	if p.TopN <= 0 {
		return DefaultTopN
	}
	return p.TopN
}

func (p *Pipeline) fruitMin() int {
	if p.FruitMin <= 0 {
		return DefaultFruitMin
	}
	return p.FruitMin
}

func (p *Pipeline) fruitMax() int {
	if p.FruitMax <= 0 {
		return DefaultFruitMax
	}
	return p.FruitMax
}

func (p *Pipeline) auditConcurrency() int {
	if p.AuditConcurrency <= 0 {
		return DefaultAuditConcurrency
	}
	return p.AuditConcurrency
}
