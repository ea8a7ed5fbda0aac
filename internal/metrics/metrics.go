package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nota_generation_duration_seconds",
		Help:    "Duration of generative model calls grouped by request kind and outcome",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"kind", "outcome"})

	generationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nota_generation_requests_total",
		Help: "Total generative model calls grouped by request kind and outcome",
	}, []string{"kind", "outcome"})

	planEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nota_plan_events_generated_total",
		Help: "Planned events accepted into a timeline",
	})

	planFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nota_plan_failures_total",
		Help: "Plan generations that contributed no events, grouped by reason",
	}, []string{"reason"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nota_session_transitions_total",
		Help: "Auth session state changes observed by the session monitor",
	}, []string{"state"})
)

// ObserveGeneration records one gateway call. outcome is "ok" or an error kind.
func ObserveGeneration(kind, outcome string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	generationDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	generationTotal.WithLabelValues(kind, outcome).Inc()
}

// ObservePlan records the contribution of one plan generation.
func ObservePlan(added int, failureReason string) {
	if failureReason != "" {
		planFailuresTotal.WithLabelValues(failureReason).Inc()
		return
	}
	planEventsTotal.Add(float64(added))
}

// ObserveSessionTransition counts a session state change.
func ObserveSessionTransition(state string) {
	sessionTransitions.WithLabelValues(state).Inc()
}
