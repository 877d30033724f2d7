package analytics

import (
	"context"
	"fmt"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/config"
)

const correlationPath = "/correlation/graph"

type HTTPCorrelationProvider struct{ base *HTTPServiceBase }

func NewHTTPCorrelationProvider(cfg config.AnalyticsConfig) *HTTPCorrelationProvider {
	return &HTTPCorrelationProvider{base: NewHTTPServiceBase(cfg)}
}

type correlationResponse struct {
	Pairs []struct {
		Source      string  `json:"source"`
		Target      string  `json:"target"`
		Coefficient float64 `json:"coefficient"`
	} `json:"pairs"`
	StrongLinks      int `json:"strongLinks"`
	CascadesDetected int `json:"cascadesDetected"`
}

func (p *HTTPCorrelationProvider) GetGraph(ctx context.Context) (models.CorrelationGraph, error) {
	var cr correlationResponse
	if err := p.base.GetJSONWithRetry(ctx, correlationPath, &cr); err != nil {
		return models.CorrelationGraph{}, fmt.Errorf("correlation graph: %w", err)
	}
	g := models.CorrelationGraph{
		Pairs:            make([]models.CorrelationPair, 0, len(cr.Pairs)),
		StrongLinks:      cr.StrongLinks,
		CascadesDetected: cr.CascadesDetected,
	}
	for _, pr := range cr.Pairs {
		g.Pairs = append(g.Pairs, models.CorrelationPair{Source: pr.Source, Target: pr.Target, Coefficient: pr.Coefficient})
	}
	return g, nil
}

var _ domsvc.CorrelationProvider = (*HTTPCorrelationProvider)(nil)
