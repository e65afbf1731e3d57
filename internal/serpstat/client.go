// Package serpstat is a paced JSON-RPC client for the Serpstat v4 API.
package serpstat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/kwscout/internal/metrics"
	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/FranksOps/kwscout/pkg/httpclient"
	"github.com/FranksOps/kwscout/pkg/ratelimit"
	"github.com/google/uuid"
)

// DefaultEndpoint is the Serpstat v4 JSON-RPC endpoint.
const DefaultEndpoint = "https://api.serpstat.com/v4"

// DefaultInterval is the pause held after each successful call.
const DefaultInterval = 1100 * time.Millisecond

// Keyword procedure methods.
const (
	MethodKeywordsInfo    = "SerpstatKeywordProcedure.getKeywordsInfo"
	MethodKeywordFullTop  = "SerpstatKeywordProcedure.getKeywordFullTop"
	MethodRelatedKeywords = "SerpstatKeywordProcedure.getRelatedKeywords"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// ErrMissingToken is returned by New when no API token is configured.
var ErrMissingToken = errors.New("serpstat: api token is required")

// Params are the JSON-RPC params of one call.
type Params map[string]any

// Keyword returns the keyword the call is about, for logs and the journal.
func (p Params) Keyword() string {
	if kw, ok := p["keyword"].(string); ok {
		return kw
	}
	if kws, ok := p["keywords"].([]string); ok && len(kws) > 0 {
		return kws[0]
	}
	return ""
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a decoded JSON-RPC response.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Decode unmarshals the result into v. It reports false when the result is
// absent, null or an empty array.
func (r *Response) Decode(v any) (bool, error) {
	res := bytes.TrimSpace(r.Result)
	if len(res) == 0 || bytes.Equal(res, []byte("null")) || bytes.Equal(res, []byte("[]")) {
		return false, nil
	}
	if err := json.Unmarshal(res, v); err != nil {
		return false, err
	}
	return true, nil
}

// Config configures a Client.
type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds a single HTTP exchange. Defaults to httpclient.DefaultTimeout.
	Timeout time.Duration
	// Limiter paces calls. Defaults to a Pacer holding DefaultInterval.
	Limiter ratelimit.Limiter
	// Journal records call metadata when set.
	Journal   storage.Backend
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client issues paced JSON-RPC calls. It is safe for concurrent use; all
// calls share the configured Limiter.
type Client struct {
	endpoint string
	http     *httpclient.Client
	limiter  ratelimit.Limiter
	journal  storage.Backend
	logger   *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewPacer(DefaultInterval, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
		Header: http.Header{
			"Token":        {cfg.Token},
			"Content-Type": {"application/json"},
			"Accept":       {"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("serpstat: %w", err)
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     hc,
		limiter:  cfg.Limiter,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
	}, nil
}

type request struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params Params `json:"params"`
}

// Call sends one JSON-RPC request. The HTTP exchange runs inside the
// limiter, so a successful call returns only after the pacing interval.
// Failures are *Error values of KindTimeout or KindUpstream.
func (c *Client) Call(ctx context.Context, method string, params Params) (*Response, error) {
	payload, err := json.Marshal(request{ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Method: method, Keyword: params.Keyword(), Err: err}
	}

	var (
		status int
		body   []byte
		took   time.Duration
		sent   bool
	)
	err = c.limiter.Do(ctx, func(ctx context.Context) error {
		sent = true
		start := time.Now()
		defer func() { took = time.Since(start) }()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}

		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if status < 200 || status > 299 {
			return fmt.Errorf("unexpected status %s", http.StatusText(status))
		}
		return nil
	})

	if err == nil {
		var out Response
		if uerr := json.Unmarshal(body, &out); uerr != nil {
			err = fmt.Errorf("decode response: %w", uerr)
		} else if out.Error != nil {
			err = out.Error
		} else {
			c.record(method, params, status, took, nil)
			return &out, nil
		}
	}

	serr := c.classify(method, params, status, err)
	if sent {
		c.record(method, params, status, took, serr)
	}
	return nil, serr
}

func (c *Client) classify(method string, params Params, status int, err error) *Error {
	kind := KindUpstream
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Method: method, Keyword: params.Keyword(), StatusCode: status, Err: err}
}

func (c *Client) record(method string, params Params, status int, took time.Duration, callErr *Error) {
	rec := &storage.CallRecord{
		ID:         uuid.NewString(),
		Method:     method,
		Keyword:    params.Keyword(),
		StatusCode: status,
		Duration:   took,
		Outcome:    storage.OutcomeOK,
		CreatedAt:  time.Now().UTC(),
	}
	if callErr != nil {
		rec.Outcome = storage.OutcomeError
		if callErr.Kind == KindTimeout {
			rec.Outcome = storage.OutcomeTimeout
		}
		rec.Error = callErr.Error()
	}

	metrics.RecordCall(rec)
	c.logger.Debug("serpstat call",
		"method", method,
		"keyword", rec.Keyword,
		"status", status,
		"outcome", rec.Outcome,
		"duration", took,
	)

	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.Save(ctx, rec); err != nil {
		c.logger.Warn("failed to journal serpstat call", "method", method, "err", err)
	}
}
