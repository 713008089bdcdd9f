package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_turn_duration_seconds",
			Help:    "Turn processing duration in seconds, by stage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	TurnTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_turn_total",
			Help: "Total turns processed, by routed action",
		},
		[]string{"action"},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_fallback_total",
			Help: "Total fallback decisions and utterances served",
		},
		[]string{"component"},
	)

	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total interview sessions started",
		},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_sessions_completed_total",
			Help: "Total interview sessions completed",
		},
		[]string{"status"},
	)

	PlanBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_plan_build_duration_seconds",
			Help:    "Topic graph generation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20},
		},
	)

	PlanTopicsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_plan_topics_count",
			Help:    "Number of topics in generated plans",
			Buckets: []float64{2, 3, 4, 5, 6, 7, 8},
		},
	)

	AggregateScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_aggregate_score",
			Help:    "Aggregate scorecard values",
			Buckets: []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		},
	)

	LeaseContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_lease_contention_total",
			Help: "Turns rejected because another turn held the session lease",
		},
	)
)

func Init() {
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(TurnTotal)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(SessionsCompleted)
	prometheus.MustRegister(PlanBuildDuration)
	prometheus.MustRegister(PlanTopicsCount)
	prometheus.MustRegister(AggregateScore)
	prometheus.MustRegister(LeaseContention)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
