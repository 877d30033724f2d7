package service

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// CorrelationProvider exposes the current metric correlation graph.
type CorrelationProvider interface {
	GetGraph(ctx context.Context) (models.CorrelationGraph, error)
}

// RootCauseProvider exposes the size of the current causal graph.
type RootCauseProvider interface {
	GetSummary(ctx context.Context) (models.RootCauseSummary, error)
}

// ForecastProvider exposes the four-horizon forecast.
type ForecastProvider interface {
	Forecast(ctx context.Context) (models.Forecast, error)
}
