package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwscout_upstream_calls_total",
			Help: "Total number of Serpstat API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kwscout_upstream_call_duration_seconds",
			Help:    "Duration of Serpstat API calls in seconds, excluding pacing",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)

	RelatedSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kwscout_related_skipped_total",
			Help: "Related keywords dropped because their lookup failed",
		},
	)

	SeedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwscout_seed_results_total",
			Help: "Seed keyword analyses by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordCall updates the upstream call metrics from a journal record.
func RecordCall(rec *storage.CallRecord) {
	if rec == nil {
		return
	}

	UpstreamCallsTotal.WithLabelValues(rec.Method, rec.Outcome).Inc()
	UpstreamCallDuration.WithLabelValues(rec.Method).Observe(rec.Duration.Seconds())
}

// RecordSeed counts one analyzed seed keyword. outcome is "ok" or "error".
func RecordSeed(outcome string) {
	SeedResults.WithLabelValues(outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
