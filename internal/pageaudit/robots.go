package pageaudit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/FranksOps/kwscout/pkg/httpclient"
	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per scheme and host. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
type robotsCache struct {
	client *httpclient.Client
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *httpclient.Client, logger *slog.Logger) *robotsCache {
	return &robotsCache{
		client: client,
		logger: logger,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether userAgent may fetch target.
func (r *robotsCache) allowed(ctx context.Context, target *url.URL, userAgent string) bool {
	host := target.Scheme + "://" + target.Host

	data, err := r.getOrFetch(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return true
	}
	if data == nil {
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path)
}

func (r *robotsCache) getOrFetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()
	if exists {
		return data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if data, exists = r.cache[host]; exists {
		return data, nil
	}

	data, err := r.fetch(ctx, host)
	r.cache[host] = data
	return data, err
}

func (r *robotsCache) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return parsed, nil
}
