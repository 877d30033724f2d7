package api

import (
	"encoding/json"

	"RiskPulse/internal/domain/models"
)

// IngestSignalsRequest is the body of POST /api/signals.
type IngestSignalsRequest struct {
	Signals []models.SignalRecord `json:"signals" validate:"required,min=1,max=1000,dive"`
}

// ClusterRequest is the body of POST /api/clusters. An empty batch yields
// no clusters.
type ClusterRequest struct {
	Signals []models.SignalRecord `json:"signals" validate:"max=5000,dive"`
}

// FusionRequest carries engine results keyed by slot. Each value is decoded
// into the variant that belongs to its slot.
type FusionRequest struct {
	Results map[models.EngineSlot]json.RawMessage `json:"results" validate:"required"`
}

// ReactorRequest is the body of POST /api/reactor/evaluate.
type ReactorRequest struct {
	Checks     []models.MicroCheck `json:"checks" validate:"max=32,dive"`
	Confidence *float64            `json:"confidence" default:"100" validate:"required,gte=0,lte=100"`
}

// DecisionRequest is the body of POST /api/decision.
type DecisionRequest struct {
	Results map[models.EngineSlot]json.RawMessage `json:"results" validate:"required"`
	Checks  []models.MicroCheck                   `json:"checks" validate:"max=32,dive"`
}

// OrchestratorConfigRequest is a partial update; omitted fields keep their
// current value.
type OrchestratorConfigRequest struct {
	PollIntervalMs         *int64   `json:"poll_interval_ms" validate:"omitempty,gte=1"`
	PerformanceThresholdMs *int64   `json:"performance_threshold_ms" validate:"omitempty,gte=1"`
	HighRiskThreshold      *float64 `json:"high_risk_threshold" validate:"omitempty,gte=0,lte=100"`
}

// FusionResponse pairs the matrix with its signal quality.
type FusionResponse struct {
	Matrix  models.FusionMatrix `json:"matrix"`
	Quality float64             `json:"quality"`
}

// IngestResponse reports how much of a batch was accepted.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error,omitempty"`
}
