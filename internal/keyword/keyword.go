// Package keyword resolves keyword metrics, ranking positions and related
// keywords through the Serpstat API.
package keyword

import (
	"context"
	"fmt"
	"math"

	"github.com/FranksOps/kwscout/internal/serp"
	"github.com/FranksOps/kwscout/internal/serpstat"
)

const (
	// DefaultSearchEngine is the Serpstat database queried (Google Denmark).
	DefaultSearchEngine = "g_dk"
	// DefaultRelatedLimit caps how many related keywords an expansion yields.
	DefaultRelatedLimit = 20
)

// Caller issues one upstream call. *serpstat.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, method string, params serpstat.Params) (*serpstat.Response, error)
}

// Metrics holds the search volume and difficulty of a keyword. Either may
// be nil when the API omits it.
type Metrics struct {
	Keyword    string   `json:"keyword"`
	Volume     *int     `json:"volume"`
	Difficulty *float64 `json:"difficulty"`
}

type keywordsInfo struct {
	Data []struct {
		RegionQueriesCount *float64 `json:"region_queries_count"`
		Difficulty         *float64 `json:"difficulty"`
	} `json:"data"`
}

// Fetcher looks up keyword metrics.
type Fetcher struct {
	caller Caller
	se     string
}

// NewFetcher creates a Fetcher querying search engine se. An empty se means
// DefaultSearchEngine.
func NewFetcher(c Caller, se string) *Fetcher {
	if se == "" {
		se = DefaultSearchEngine
	}
	return &Fetcher{caller: c, se: se}
}

// Fetch returns the metrics of the first record returned for kw. An empty
// result set is a serpstat.KindNoData error.
func (f *Fetcher) Fetch(ctx context.Context, kw string) (Metrics, error) {
	resp, err := f.caller.Call(ctx, serpstat.MethodKeywordsInfo, serpstat.Params{
		"keywords": []string{kw},
		"se":       f.se,
	})
	if err != nil {
		return Metrics{}, err
	}

	var info keywordsInfo
	ok, err := resp.Decode(&info)
	if err != nil || !ok || len(info.Data) == 0 {
		nd := serpstat.NoData(serpstat.MethodKeywordsInfo, kw)
		nd.Err = err
		return Metrics{}, nd
	}

	rec := info.Data[0]
	m := Metrics{Keyword: kw, Difficulty: rec.Difficulty}
	if rec.RegionQueriesCount != nil {
		v := int(math.Round(*rec.RegionQueriesCount))
		m.Volume = &v
	}
	return m, nil
}

type fullTop struct {
	Hits []serp.Hit `json:"hits"`
}

// Locator finds where a domain ranks for a keyword.
type Locator struct {
	caller Caller
	se     string
}

// NewLocator creates a Locator querying search engine se.
func NewLocator(c Caller, se string) *Locator {
	if se == "" {
		se = DefaultSearchEngine
	}
	return &Locator{caller: c, se: se}
}

// Find returns the first hit for kw whose domain contains domain after
// normalization. ok is false when the domain does not rank.
func (l *Locator) Find(ctx context.Context, kw, domain string) (hit serp.Hit, ok bool, err error) {
	resp, err := l.caller.Call(ctx, serpstat.MethodKeywordFullTop, serpstat.Params{
		"keyword": kw,
		"se":      l.se,
	})
	if err != nil {
		return serp.Hit{}, false, err
	}

	var top fullTop
	if _, err := resp.Decode(&top); err != nil {
		return serp.Hit{}, false, &serpstat.Error{
			Kind:    serpstat.KindUpstream,
			Method:  serpstat.MethodKeywordFullTop,
			Keyword: kw,
			Err:     fmt.Errorf("decode hits: %w", err),
		}
	}

	hit, ok = serp.Locate(top.Hits, domain)
	return hit, ok, nil
}

// Locate returns the ranking position of domain for kw, or serp.NotFound.
func (l *Locator) Locate(ctx context.Context, kw, domain string) (serp.Position, error) {
	hit, ok, err := l.Find(ctx, kw, domain)
	if err != nil {
		return serp.NotFound, err
	}
	if !ok {
		return serp.NotFound, nil
	}
	return serp.Position(hit.Position), nil
}

type relatedKeywords struct {
	Data []struct {
		Keyword string `json:"keyword"`
	} `json:"data"`
}

// Expander lists keywords related to a seed keyword.
type Expander struct {
	caller Caller
	se     string
	limit  int
}

// NewExpander creates an Expander returning at most limit keywords. A limit
// <= 0 means DefaultRelatedLimit.
func NewExpander(c Caller, se string, limit int) *Expander {
	if se == "" {
		se = DefaultSearchEngine
	}
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	return &Expander{caller: c, se: se, limit: limit}
}

// Expand returns related keywords for kw in API order. Only the first limit
// records are considered; blank keywords among them are dropped. An empty
// result is not an error.
func (e *Expander) Expand(ctx context.Context, kw string) ([]string, error) {
	resp, err := e.caller.Call(ctx, serpstat.MethodRelatedKeywords, serpstat.Params{
		"keyword": kw,
		"se":      e.se,
	})
	if err != nil {
		return nil, err
	}

	var related relatedKeywords
	if _, err := resp.Decode(&related); err != nil {
		return nil, &serpstat.Error{
			Kind:    serpstat.KindUpstream,
			Method:  serpstat.MethodRelatedKeywords,
			Keyword: kw,
			Err:     fmt.Errorf("decode related keywords: %w", err),
		}
	}

	// The limit applies to records returned, blank ones included.
	data := related.Data[:min(len(related.Data), e.limit)]
	out := make([]string, 0, len(data))
	for _, r := range data {
		if r.Keyword == "" {
			continue
		}
		out = append(out, r.Keyword)
	}
	return out, nil
}
