package models

import "time"

// RiskClass is the traffic-light classification of a risk score.
type RiskClass string

const (
	RiskGreen  RiskClass = "GREEN"
	RiskYellow RiskClass = "YELLOW"
	RiskOrange RiskClass = "ORANGE"
	RiskRed    RiskClass = "RED"
)

// Trend compares a score with the previous one.
type Trend string

const (
	TrendUp     Trend = "UP"
	TrendDown   Trend = "DOWN"
	TrendStable Trend = "STABLE"
)

// RiskScore is the Risk Scorer output.
type RiskScore struct {
	Score          float64   `json:"score"`
	Classification RiskClass `json:"classification"`
	Confidence     float64   `json:"confidence"`
	Factors        []string  `json:"factors"`
	Trend          Trend     `json:"trend"`
	Timestamp      time.Time `json:"timestamp"`
}

// CorrelationPair is one edge of the correlation graph.
type CorrelationPair struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Coefficient float64 `json:"coefficient"`
}

// CorrelationGraph is what the correlation provider returns.
type CorrelationGraph struct {
	Pairs            []CorrelationPair `json:"pairs"`
	StrongLinks      int               `json:"strong_links"`
	CascadesDetected int               `json:"cascades_detected"`
}

// RootCauseSummary is what the root-cause provider returns.
type RootCauseSummary struct {
	NodeCount int `json:"node_count"`
}

// ForecastWindow is the forecast for a single horizon.
type ForecastWindow struct {
	State      string  `json:"state"`
	Confidence float64 `json:"confidence"`
}

// Forecast is what the forecast provider returns.
type Forecast struct {
	Window30s   ForecastWindow `json:"window_30s"`
	Window2Min  ForecastWindow `json:"window_2min"`
	Window5Min  ForecastWindow `json:"window_5min"`
	Window10Min ForecastWindow `json:"window_10min"`
	RiskShift   float64        `json:"risk_shift"`
}

// Health classifies orchestrator cycle performance.
type Health string

const (
	HealthHealthy  Health = "HEALTHY"
	HealthDegraded Health = "DEGRADED"
	HealthCritical Health = "CRITICAL"
)

// CorrelationSummary is the payload view of the correlation graph.
type CorrelationSummary struct {
	PairCount          int     `json:"pair_count"`
	Intensity          float64 `json:"intensity"`
	StrongLinks        int     `json:"strong_links"`
	CascadesDetected   int     `json:"cascades_detected"`
	DestabilizingLinks int     `json:"destabilizing_links"`
}

// RootCauseView is the payload view of the root-cause summary.
type RootCauseView struct {
	NodeCount int     `json:"node_count"`
	Weight    float64 `json:"weight"`
}

// PerformanceBlock describes the cycle that produced a payload.
type PerformanceBlock struct {
	CycleTimeMs        float64   `json:"cycle_time_ms"`
	AverageCycleTimeMs float64   `json:"average_cycle_time_ms"`
	LastUpdate         time.Time `json:"last_update"`
	Health             Health    `json:"health"`
	Cycles             int64     `json:"cycles"`
}

// IntelligencePayload is the orchestrator's per-cycle snapshot.
type IntelligencePayload struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Risk        RiskScore          `json:"risk"`
	Correlation CorrelationSummary `json:"correlation"`
	RootCause   RootCauseView      `json:"root_cause"`
	Forecast    Forecast           `json:"forecast"`
	Performance PerformanceBlock   `json:"performance"`
}
