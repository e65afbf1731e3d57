// Package api exposes keyword analysis over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FranksOps/kwscout/internal/pipeline"
	"github.com/gin-gonic/gin"
)

const missingKeyword = "Missing 'keyword' parameter"

// Analyzer runs keyword analyses. *pipeline.Pipeline satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, seeds []string, domain string) ([]pipeline.Result, error)
	FindRanking(ctx context.Context, seeds []string, domain string) ([]pipeline.Ranking, error)
}

// Handler serves the analysis endpoints.
type Handler struct {
	analyzer      Analyzer
	defaultDomain string
	logger        *slog.Logger
}

// NewHandler creates a Handler. Requests without a domain use defaultDomain.
func NewHandler(a Analyzer, defaultDomain string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{analyzer: a, defaultDomain: defaultDomain, logger: logger}
}

type analysisRequest struct {
	Keywords []string `json:"keywords"`
	Domain   string   `json:"domain"`
}

// parseRequest reads keywords and domain from the query string, or from a
// JSON body on POST. Blank keywords are dropped; others are kept verbatim.
func (h *Handler) parseRequest(c *gin.Context) ([]string, string, bool) {
	req := analysisRequest{
		Keywords: c.QueryArray("keyword"),
		Domain:   c.Query("domain"),
	}

	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		var body analysisRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return nil, "", false
		}
		req.Keywords = append(req.Keywords, body.Keywords...)
		if body.Domain != "" {
			req.Domain = body.Domain
		}
	}

	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if strings.TrimSpace(kw) != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingKeyword})
		return nil, "", false
	}

	domain := req.Domain
	if strings.TrimSpace(domain) == "" {
		domain = h.defaultDomain
	}
	return keywords, domain, true
}

// KeywordAnalysis handles /keyword-analysis.
func (h *Handler) KeywordAnalysis(c *gin.Context) {
	keywords, domain, ok := h.parseRequest(c)
	if !ok {
		return
	}

	results, err := h.analyzer.Analyze(c.Request.Context(), keywords, domain)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// FindRankingKeywords handles /find-ranking-keywords.
func (h *Handler) FindRankingKeywords(c *gin.Context) {
	keywords, domain, ok := h.parseRequest(c)
	if !ok {
		return
	}

	rankings, err := h.analyzer.FindRanking(c.Request.Context(), keywords, domain)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rankings)
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, pipeline.ErrNoKeywords):
		c.JSON(http.StatusBadRequest, gin.H{"error": missingKeyword})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		c.Status(499)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Health handles /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NewRouter builds the gin engine with recovery, request logging and all
// routes.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/healthz", h.Health)
	r.GET("/keyword-analysis", h.KeywordAnalysis)
	r.POST("/keyword-analysis", h.KeywordAnalysis)
	r.GET("/find-ranking-keywords", h.FindRankingKeywords)
	r.POST("/find-ranking-keywords", h.FindRankingKeywords)
	return r
}
