package analytics

import (
	"context"
	"fmt"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/config"
)

const forecastPath = "/forecast"

type HTTPForecastProvider struct{ base *HTTPServiceBase }

func NewHTTPForecastProvider(cfg config.AnalyticsConfig) *HTTPForecastProvider {
	return &HTTPForecastProvider{base: NewHTTPServiceBase(cfg)}
}

type windowResponse struct {
	State      string  `json:"state"`
	Confidence float64 `json:"confidence"`
}

type forecastResponse struct {
	Window30s   windowResponse `json:"window30s"`
	Window2Min  windowResponse `json:"window2min"`
	Window5Min  windowResponse `json:"window5min"`
	Window10Min windowResponse `json:"window10min"`
	RiskShift   float64        `json:"riskShift"`
}

func (p *HTTPForecastProvider) Forecast(ctx context.Context) (models.Forecast, error) {
	var fr forecastResponse
	if err := p.base.GetJSONWithRetry(ctx, forecastPath, &fr); err != nil {
		return models.Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return models.Forecast{
		Window30s:   window(fr.Window30s),
		Window2Min:  window(fr.Window2Min),
		Window5Min:  window(fr.Window5Min),
		Window10Min: window(fr.Window10Min),
		RiskShift:   fr.RiskShift,
	}, nil
}

// window substitutes UNKNOWN for a missing state.
func window(w windowResponse) models.ForecastWindow {
	if w.State == "" {
		w.State = "UNKNOWN"
	}
	return models.ForecastWindow{State: w.State, Confidence: w.Confidence}
}

var _ domsvc.ForecastProvider = (*HTTPForecastProvider)(nil)
