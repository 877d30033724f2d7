package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalyticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskpulse",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of analytics collaborator endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Errors by analytics collaborator endpoint",
		},
		[]string{"endpoint"},
	)

	// EngineEvaluations counts on-demand engine calls (cluster, fusion, reactor, decision).
	EngineEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "engine",
			Name:      "evaluations_total",
			Help:      "On-demand engine evaluations by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalyticsLatency, AnalyticsErrors, EngineEvaluations)
	})
}
