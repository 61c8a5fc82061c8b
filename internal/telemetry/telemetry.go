// Package telemetry is the observability handle threaded through every
// component instead of a package-level logger or the Prometheus default
// registry, avoiding process-wide singletons beyond the configuration
// struct.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Handle bundles a logger and the engine's metric collectors. Construct one
// with New and pass it down; components take a *Handle, never a global.
type Handle struct {
	Log *zap.Logger

	Registry *prometheus.Registry

	TickDuration       prometheus.Histogram
	CandidatesFound    prometheus.Counter
	CandidatesAccepted prometheus.Counter
	ClosuresExecuted   prometheus.Counter
	ClosuresFailed     prometheus.Counter
	PendingClosureSize prometheus.Gauge
	PortfolioHealth    *prometheus.GaugeVec
}

// New builds a Handle around the given logger, registering a fresh metrics
// registry (not the global default) with the engine's collectors.
func New(log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()

	h := &Handle{
		Log:      log,
		Registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hedge_engine_tick_duration_seconds",
			Help:    "Wall-clock duration of one orchestrator tick.",
			Buckets: prometheus.DefBuckets,
		}),
		CandidatesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedge_engine_candidates_found_total",
			Help: "Candidate closure groups produced by the hedge pair finder.",
		}),
		CandidatesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedge_engine_candidates_accepted_total",
			Help: "Candidates that passed evaluator validation.",
		}),
		ClosuresExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedge_engine_closures_executed_total",
			Help: "Closure decisions submitted to the broker and fully confirmed.",
		}),
		ClosuresFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedge_engine_closures_failed_total",
			Help: "Closure decisions with at least one unrecovered member failure.",
		}),
		PendingClosureSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hedge_engine_pending_closure_size",
			Help: "Number of position ids currently awaiting broker close confirmation.",
		}),
		PortfolioHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hedge_engine_portfolio_health",
			Help: "1 on the currently active portfolio health label, 0 otherwise.",
		}, []string{"label"}),
	}

	reg.MustRegister(
		h.TickDuration,
		h.CandidatesFound,
		h.CandidatesAccepted,
		h.ClosuresExecuted,
		h.ClosuresFailed,
		h.PendingClosureSize,
		h.PortfolioHealth,
	)

	return h
}

// ObserveTick records the duration of one tick.
func (h *Handle) ObserveTick(d time.Duration) {
	h.TickDuration.Observe(d.Seconds())
}

// SetHealth flips the PortfolioHealth gauge so only label is set to 1.
func (h *Handle) SetHealth(labels []string, active string) {
	for _, l := range labels {
		if l == active {
			h.PortfolioHealth.WithLabelValues(l).Set(1)
		} else {
			h.PortfolioHealth.WithLabelValues(l).Set(0)
		}
	}
}

// NewLogger constructs the zap logger used by cmd/hedge-engine: a
// development logger when development is set, the production one otherwise.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
