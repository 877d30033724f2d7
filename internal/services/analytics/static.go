package analytics

import (
	"context"
	"fmt"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/config"
)

// StaticCorrelationProvider serves a fixed graph, or Err when set.
type StaticCorrelationProvider struct {
	Graph models.CorrelationGraph
	Err   error
}

func (p *StaticCorrelationProvider) GetGraph(context.Context) (models.CorrelationGraph, error) {
	return p.Graph, p.Err
}

type StaticRootCauseProvider struct {
	Summary models.RootCauseSummary
	Err     error
}

func (p *StaticRootCauseProvider) GetSummary(context.Context) (models.RootCauseSummary, error) {
	return p.Summary, p.Err
}

type StaticForecastProvider struct {
	Value models.Forecast
	Err   error
}

func (p *StaticForecastProvider) Forecast(context.Context) (models.Forecast, error) {
	return p.Value, p.Err
}

var (
	_ domsvc.CorrelationProvider = (*StaticCorrelationProvider)(nil)
	_ domsvc.RootCauseProvider   = (*StaticRootCauseProvider)(nil)
	_ domsvc.ForecastProvider    = (*StaticForecastProvider)(nil)
)

// StaticGraph chains the configured coefficients metric-0 -> metric-1 -> ...
func StaticGraph(cfg config.StaticConfig) models.CorrelationGraph {
	g := models.CorrelationGraph{
		Pairs:            make([]models.CorrelationPair, 0, len(cfg.Coefficients)),
		StrongLinks:      cfg.StrongLinks,
		CascadesDetected: cfg.Cascades,
	}
	for i, c := range cfg.Coefficients {
		g.Pairs = append(g.Pairs, models.CorrelationPair{
			Source:      fmt.Sprintf("metric-%d", i),
			Target:      fmt.Sprintf("metric-%d", i+1),
			Coefficient: c,
		})
	}
	return g
}

// StaticForecast derives the window states from the configured risk shift.
func StaticForecast(cfg config.StaticConfig) models.Forecast {
	state := "STABLE"
	switch {
	case cfg.RiskShift >= 1:
		state = "DETERIORATING"
	case cfg.RiskShift <= -1:
		state = "IMPROVING"
	}
	return models.Forecast{
		Window30s:   models.ForecastWindow{State: state, Confidence: 0.9},
		Window2Min:  models.ForecastWindow{State: state, Confidence: 0.8},
		Window5Min:  models.ForecastWindow{State: state, Confidence: 0.7},
		Window10Min: models.ForecastWindow{State: state, Confidence: 0.6},
		RiskShift:   cfg.RiskShift,
	}
}
