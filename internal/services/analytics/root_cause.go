package analytics

import (
	"context"
	"fmt"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/config"
)

const rootCausePath = "/root-cause/summary"

type HTTPRootCauseProvider struct{ base *HTTPServiceBase }

func NewHTTPRootCauseProvider(cfg config.AnalyticsConfig) *HTTPRootCauseProvider {
	return &HTTPRootCauseProvider{base: NewHTTPServiceBase(cfg)}
}

type rootCauseResponse struct {
	NodeCount int `json:"nodeCount"`
}

func (p *HTTPRootCauseProvider) GetSummary(ctx context.Context) (models.RootCauseSummary, error) {
	var rr rootCauseResponse
	if err := p.base.GetJSONWithRetry(ctx, rootCausePath, &rr); err != nil {
		return models.RootCauseSummary{}, fmt.Errorf("root cause summary: %w", err)
	}
	if rr.NodeCount < 0 {
		rr.NodeCount = 0
	}
	return models.RootCauseSummary{NodeCount: rr.NodeCount}, nil
}

var _ domsvc.RootCauseProvider = (*HTTPRootCauseProvider)(nil)
