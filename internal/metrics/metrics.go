package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GradingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_gradings_total",
			Help: "Total number of grading calls by outcome",
		},
		[]string{"outcome"},
	)

	GradingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_grading_duration_seconds",
			Help:    "Duration of grading transactions",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	GeneratorFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_generator_fallbacks_total",
			Help: "Generator calls replaced with fallback content",
		},
		[]string{"operation"},
	)

	LeaderboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"backend", "result"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(GradingsTotal, GradingDuration, GeneratorFallbacks, LeaderboardCache)
}

// Handler serves the default gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
