package fusion

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"RiskPulse/internal/domain/models"
)

var builtAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	return NewBuilder(WithClock(func() time.Time { return builtAt }))
}

func hdr(a models.Action, conf float64) models.ResultHeader {
	return models.ResultHeader{Action: a, Confidence: conf}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuildEmpty(t *testing.T) {
	m := newTestBuilder().Build(nil)
	if m.ConsensusAction != models.ActionWait || m.ConsensusStrength != 0 || m.ConflictLevel != 0 {
		t.Fatalf("unexpected empty matrix %+v", m)
	}
	if len(m.Conflicts) != 0 || len(m.Correlations) != 0 || m.AverageConfidence != 0 {
		t.Fatalf("unexpected empty aggregates %+v", m)
	}
	if q := Quality(m); q != 0 {
		t.Fatalf("quality = %v, want 0", q)
	}
}

func TestConsensusTieBreakFollowsCanonicalOrder(t *testing.T) {
	cases := []struct {
		name    string
		results map[models.EngineSlot]models.EngineResult
		want    models.Action
	}{
		{
			name: "shield first",
			results: map[models.EngineSlot]models.EngineResult{
				models.SlotExecution:  models.ExecutionResult{ResultHeader: hdr(models.ActionBuy, 50)},
				models.SlotPrediction: models.PredictionResult{ResultHeader: hdr(models.ActionSell, 50)},
				models.SlotThreat:     models.ThreatResult{ResultHeader: hdr(models.ActionSell, 50)},
				models.SlotShield:     models.ShieldResult{ResultHeader: hdr(models.ActionBuy, 50)},
			},
			want: models.ActionBuy,
		},
		{
			name: "threat before execution",
			results: map[models.EngineSlot]models.EngineResult{
				models.SlotFlow:      models.FlowResult{ResultHeader: hdr(models.ActionSell, 50)},
				models.SlotDecision:  models.DecisionResult{ResultHeader: hdr(models.ActionBuy, 50)},
				models.SlotExecution: models.ExecutionResult{ResultHeader: hdr(models.ActionBuy, 50)},
				models.SlotThreat:    models.ThreatResult{ResultHeader: hdr(models.ActionSell, 50)},
				models.SlotShield:    models.ShieldResult{ResultHeader: hdr(models.ActionHold, 50)},
			},
			want: models.ActionSell,
		},
		{
			name: "plurality wins over order",
			results: map[models.EngineSlot]models.EngineResult{
				models.SlotShield:  models.ShieldResult{ResultHeader: hdr(models.ActionHold, 50)},
				models.SlotPattern: models.PatternResult{ResultHeader: hdr(models.ActionReduce, 50)},
				models.SlotRisk:    models.RiskResult{ResultHeader: hdr(models.ActionReduce, 50)},
			},
			want: models.ActionReduce,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				if got := newTestBuilder().Build(c.results).ConsensusAction; got != c.want {
					t.Fatalf("consensus = %s, want %s", got, c.want)
				}
			}
		})
	}
}

func TestConflictRules(t *testing.T) {
	results := map[models.EngineSlot]models.EngineResult{
		models.SlotShield:     models.ShieldResult{ResultHeader: hdr(models.ActionHold, 90), Active: true},
		models.SlotThreat:     models.ThreatResult{ResultHeader: hdr(models.ActionHold, 80), Score: 85},
		models.SlotPrediction: models.PredictionResult{ResultHeader: hdr(models.ActionSell, 50)},
		models.SlotVolatility: models.VolatilityResult{ResultHeader: hdr(models.ActionHalt, 60)},
		models.SlotExecution:  models.ExecutionResult{ResultHeader: hdr(models.ActionBuy, 70)},
		models.SlotDecision:   models.DecisionResult{ResultHeader: hdr(models.ActionBuy, 40)},
	}
	m := newTestBuilder().Build(results)

	gotTypes := make([]models.ConflictType, len(m.Conflicts))
	gotSev := make([]int, len(m.Conflicts))
	for i, c := range m.Conflicts {
		gotTypes[i] = c.Type
		gotSev[i] = c.Severity
	}
	wantTypes := []models.ConflictType{
		models.ConflictActionDivergence,
		models.ConflictShieldExecution,
		models.ConflictVolatilityHalt,
		models.ConflictThreatDecision,
	}
	if diff := cmp.Diff(wantTypes, gotTypes); diff != "" {
		t.Fatalf("conflict types (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{90, 80, 70, 60}, gotSev); diff != "" {
		t.Fatalf("conflict severities (-want +got):\n%s", diff)
	}

	if m.ConsensusAction != models.ActionHold {
		t.Fatalf("consensus = %s, want HOLD", m.ConsensusAction)
	}
	if !approx(m.AverageConfidence, 65) || !approx(m.ConsensusStrength, 100.0/3) || !approx(m.ConflictLevel, 200.0/3) {
		t.Fatalf("aggregates avg=%v strength=%v conflict=%v", m.AverageConfidence, m.ConsensusStrength, m.ConflictLevel)
	}
	if !approx(m.OverallRisk, 65) {
		t.Fatalf("overall risk = %v, want average confidence", m.OverallRisk)
	}
	if len(m.Correlations) != 15 {
		t.Fatalf("correlations = %d, want 15", len(m.Correlations))
	}
	if m.Correlations[0].A != models.SlotShield || m.Correlations[0].B != models.SlotThreat {
		t.Fatalf("first correlation pair = %+v", m.Correlations[0])
	}
}

func TestPairRulesNeedBothSlots(t *testing.T) {
	results := map[models.EngineSlot]models.EngineResult{
		models.SlotShield:     models.ShieldResult{ResultHeader: hdr(models.ActionHold, 90), Active: true},
		models.SlotVolatility: models.VolatilityResult{ResultHeader: hdr(models.ActionHalt, 60)},
		models.SlotThreat:     models.ThreatResult{ResultHeader: hdr(models.ActionHold, 80), Score: 99},
	}
	m := newTestBuilder().Build(results)
	if len(m.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts %+v", m.Conflicts)
	}
}

func TestOverallRiskPrefersRiskResult(t *testing.T) {
	m := newTestBuilder().Build(map[models.EngineSlot]models.EngineResult{
		models.SlotRisk:   &models.RiskResult{ResultHeader: hdr(models.ActionReduce, 20), Score: 77},
		models.SlotShield: models.ShieldResult{ResultHeader: hdr(models.ActionReduce, 40)},
	})
	if m.OverallRisk != 77 {
		t.Fatalf("overall risk = %v, want 77", m.OverallRisk)
	}
}

func TestCorrelationAndQuality(t *testing.T) {
	m := newTestBuilder().Build(map[models.EngineSlot]models.EngineResult{
		models.SlotShield: models.ShieldResult{ResultHeader: hdr(models.ActionBuy, 80)},
		models.SlotThreat: models.ThreatResult{ResultHeader: hdr(models.ActionBuy, 60)},
	})
	want := []models.Correlation{{A: models.SlotShield, B: models.SlotThreat, Value: 0.8}}
	if diff := cmp.Diff(want, m.Correlations, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("correlations (-want +got):\n%s", diff)
	}
	if !approx(m.SignalQuality, 82) {
		t.Fatalf("signal quality = %v, want 82", m.SignalQuality)
	}
	if q := Quality(m); !approx(q, 90) {
		t.Fatalf("quality = %v, want 90", q)
	}

	opposed := newTestBuilder().Build(map[models.EngineSlot]models.EngineResult{
		models.SlotShield: models.ShieldResult{ResultHeader: hdr(models.ActionBuy, 80)},
		models.SlotThreat: models.ThreatResult{ResultHeader: hdr(models.ActionSell, 60)},
	})
	if v := opposed.Correlations[0].Value; !approx(v, -0.8) {
		t.Fatalf("opposed correlation = %v, want -0.8", v)
	}
}

func TestQualityPenalties(t *testing.T) {
	m := models.FusionMatrix{
		SignalQuality:     30,
		ConsensusStrength: 40,
		Conflicts:         make([]models.Conflict, 2),
		Correlations:      []models.Correlation{{Value: -0.5}, {Value: 1}},
	}
	if q := Quality(m); !approx(q, 7.5) {
		t.Fatalf("quality = %v, want 7.5", q)
	}
	m.SignalQuality = 500
	if q := Quality(m); q != 100 {
		t.Fatalf("quality = %v, want clamp to 100", q)
	}
}

func TestBuildFromDecodedJSON(t *testing.T) {
	raw := map[models.EngineSlot]json.RawMessage{
		models.SlotShield:    json.RawMessage(`{"engine":"shield","action":"HOLD","confidence":70,"active":true,"blocked_reasons":["drawdown"]}`),
		models.SlotExecution: json.RawMessage(`{"engine":"exec","action":"SELL","confidence":50,"slippage_bps":4}`),
	}
	results, err := models.DecodeEngineResults(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := newTestBuilder().Build(results)
	if len(m.Conflicts) != 1 || m.Conflicts[0].Type != models.ConflictShieldExecution {
		t.Fatalf("conflicts = %+v", m.Conflicts)
	}

	if _, err := models.DecodeEngineResults(map[models.EngineSlot]json.RawMessage{"oracle": json.RawMessage(`{}`)}); err == nil {
		t.Fatalf("expected unknown slot error")
	}
	if _, err := models.DecodeEngineResult(models.SlotFlow, json.RawMessage(`{"action":"YOLO"}`)); err == nil {
		t.Fatalf("expected invalid action error")
	}
}
