package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RiskPulse/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycleDuration *prometheus.HistogramVec
	riskScore     prometheus.Gauge
	health        prometheus.Gauge
	eventsTotal   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registering on reg, so tests can use
// a private registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskpulse_cycle_duration_seconds",
				Help:    "Wall-clock duration of orchestrator cycles",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"health"},
		),
		riskScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskpulse_risk_score",
			Help: "Latest composite risk score (0-100)",
		}),
		health: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskpulse_cycle_health",
			Help: "Latest cycle health: 0 healthy, 1 degraded, 2 critical",
		}),
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_events_emitted_total",
				Help: "Total number of orchestrator events emitted",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one orchestrator cycle.
func (r *Recorder) RecordCycle(seconds float64, health models.Health) {
	r.cycleDuration.WithLabelValues(string(health)).Observe(seconds)
	switch health {
	case models.HealthHealthy:
		r.health.Set(0)
	case models.HealthDegraded:
		r.health.Set(1)
	default:
		r.health.Set(2)
	}
}

// RecordRiskScore records the latest risk score.
func (r *Recorder) RecordRiskScore(score float64) {
	r.riskScore.Set(score)
}

// RecordEvent records an emitted event.
func (r *Recorder) RecordEvent(eventType string) {
	r.eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
