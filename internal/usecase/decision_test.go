package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
)

type memHistory struct {
	mu        sync.Mutex
	payloads  []*models.IntelligencePayload
	decisions []models.ExecutionDecision
	pruned    []time.Time
	err       error
}

func (m *memHistory) Init(context.Context) error { return nil }

func (m *memHistory) StorePayload(_ context.Context, p *models.IntelligencePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, p)
	return nil
}

func (m *memHistory) StoreDecision(_ context.Context, d *models.ExecutionDecision, _ *models.FusionMatrix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *memHistory) RecentPayloads(_ context.Context, limit int) ([]*models.IntelligencePayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.payloads) {
		limit = len(m.payloads)
	}
	return append([]*models.IntelligencePayload(nil), m.payloads[len(m.payloads)-limit:]...), nil
}

func (m *memHistory) Prune(_ context.Context, olderThan time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pruned = append(m.pruned, olderThan)
	return nil
}

func (m *memHistory) Health(context.Context) error { return m.err }
func (m *memHistory) Close() error                 { return nil }

func agreeingResults() map[models.EngineSlot]models.EngineResult {
	return map[models.EngineSlot]models.EngineResult{
		models.SlotShield: models.ShieldResult{ResultHeader: models.ResultHeader{Action: models.ActionBuy, Confidence: 80}},
		models.SlotThreat: models.ThreatResult{ResultHeader: models.ResultHeader{Action: models.ActionBuy, Confidence: 60}},
	}
}

func TestDecideFusesThenEvaluates(t *testing.T) {
	hist := &memHistory{}
	s := NewDecisionService(nil, nil, hist, nil, nil)

	out, err := s.Decide(context.Background(), DecisionInput{Results: agreeingResults()})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Matrix.ConsensusAction != models.ActionBuy {
		t.Fatalf("consensus = %s", out.Matrix.ConsensusAction)
	}
	if math.Abs(out.Quality-90) > 1e-9 || out.Decision.Confidence != out.Quality {
		t.Fatalf("quality=%v confidence=%v", out.Quality, out.Decision.Confidence)
	}
	if !out.Decision.ShouldExecute {
		t.Fatalf("decision %+v, want execute", out.Decision)
	}
	if len(hist.decisions) != 1 || !hist.decisions[0].ShouldExecute {
		t.Fatalf("audited %+v", hist.decisions)
	}
}

func TestDecideBlockedByCheck(t *testing.T) {
	s := NewDecisionService(nil, nil, nil, nil, nil)
	out, err := s.Decide(context.Background(), DecisionInput{
		Results: agreeingResults(),
		Checks:  []models.MicroCheck{{Name: models.CheckSpread, Value: 3, Threshold: 1}},
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Decision.ShouldExecute || !out.Decision.ShouldCancel {
		t.Fatalf("decision %+v, want cancel", out.Decision)
	}
	if got := decisionOutcome(out.Decision); got != "emergency_abort" {
		t.Fatalf("outcome = %s", got)
	}
}

func TestDecideAuditFailureKeepsDecision(t *testing.T) {
	metrics := &recordingMetrics{}
	s := NewDecisionService(nil, nil, &memHistory{err: errors.New("clickhouse down")}, metrics, nil)
	out, err := s.Decide(context.Background(), DecisionInput{Results: agreeingResults()})
	if err != nil || !out.Decision.ShouldExecute {
		t.Fatalf("Decide = %+v, %v", out.Decision, err)
	}
	if len(metrics.errors) != 1 || metrics.errors[0] != "decision_audit" {
		t.Fatalf("errors = %v", metrics.errors)
	}
}

func TestDecideRejectsUnnamedCheck(t *testing.T) {
	s := NewDecisionService(nil, nil, nil, nil, nil)
	if _, err := s.Decide(context.Background(), DecisionInput{Checks: []models.MicroCheck{{Value: 1}}}); err == nil {
		t.Fatalf("expected error")
	}
}
