package analytics

import (
	"fmt"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/config"
)

// Providers bundles the three collaborators the risk scorer reads.
type Providers struct {
	Correlation domsvc.CorrelationProvider
	RootCause   domsvc.RootCauseProvider
	Forecast    domsvc.ForecastProvider
}

// NewProviders selects HTTP or static implementations by cfg.Mode.
func NewProviders(cfg config.AnalyticsConfig) (Providers, error) {
	switch cfg.Mode {
	case "http":
		return Providers{
			Correlation: NewHTTPCorrelationProvider(cfg),
			RootCause:   NewHTTPRootCauseProvider(cfg),
			Forecast:    NewHTTPForecastProvider(cfg),
		}, nil
	case "static", "":
		return Providers{
			Correlation: &StaticCorrelationProvider{Graph: StaticGraph(cfg.Static)},
			RootCause:   &StaticRootCauseProvider{Summary: models.RootCauseSummary{NodeCount: cfg.Static.NodeCount}},
			Forecast:    &StaticForecastProvider{Value: StaticForecast(cfg.Static)},
		}, nil
	}
	return Providers{}, fmt.Errorf("unknown analytics mode %q", cfg.Mode)
}
