// Package metrics exposes process counters for the bridge over Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Diagnostic outcomes recorded by the filter.
const (
	OutcomeKept        = "kept"
	OutcomeScript      = "foreign_script"
	OutcomeSuppressed  = "suppressed_code"
	OutcomeOpaque      = "opaque_block"
	OutcomeRule        = "user_rule"
	OutcomeNegative    = "negative_line"
	OutcomeParserError = "parser_error"
)

var (
	transpileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrols_transpile_total",
			Help: "Component transpilations by result (run or reused)",
		},
		[]string{"result"},
	)

	snapshotUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrols_snapshot_updates_total",
			Help: "Snapshot store writes by kind (create, update, unchanged, delete)",
		},
		[]string{"kind"},
	)

	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrols_resolve_total",
			Help: "Module resolution requests by result (cached, resolved, unresolved)",
		},
		[]string{"result"},
	)

	resolveInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "astrols_resolve_invalidations_total",
			Help: "Resolution cache entries removed by invalidation",
		},
	)

	diagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrols_diagnostics_total",
			Help: "Raw engine diagnostics by filter outcome",
		},
		[]string{"outcome"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astrols_diagnostic_pass_duration_seconds",
			Help:    "Duration of one diagnostic pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	passRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "astrols_diagnostic_pass_restarts_total",
			Help: "Diagnostic passes restarted because the snapshot changed mid-pass",
		},
	)
)

// Transpiled records a transpiler run, or a reuse of cached output.
func Transpiled(reused bool) {
	if reused {
		transpileTotal.WithLabelValues("reused").Inc()
		return
	}
	transpileTotal.WithLabelValues("run").Inc()
}

// SnapshotWrite records a snapshot store write of the given kind.
func SnapshotWrite(kind string) {
	snapshotUpdatesTotal.WithLabelValues(kind).Inc()
}

// Resolved records a resolution request outcome.
func Resolved(result string) {
	resolveTotal.WithLabelValues(result).Inc()
}

// Invalidated records n removed resolution entries.
func Invalidated(n int) {
	if n > 0 {
		resolveInvalidationsTotal.Add(float64(n))
	}
}

// Diagnostic records the filter outcome for one raw diagnostic.
func Diagnostic(outcome string) {
	diagnosticsTotal.WithLabelValues(outcome).Inc()
}

// PassDone records a finished diagnostic pass.
func PassDone(d time.Duration) {
	passDuration.Observe(d.Seconds())
}

// PassRestarted records a pass restarted after a concurrent edit.
func PassRestarted() {
	passRestartsTotal.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
