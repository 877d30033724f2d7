package fusion

import (
	"fmt"
	"math"
	"time"

	"RiskPulse/internal/domain/models"
)

const (
	severityShieldExecution = 80
	severityVolatilityHalt  = 70
	severityThreatDecision  = 60
	threatScoreLimit        = 70
)

// Builder merges engine results into a FusionMatrix. Every aggregate
// iterates models.CanonicalSlots so output never depends on map order.
type Builder struct {
	now func() time.Time
}

type Option func(*Builder)

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

type entry struct {
	slot   models.EngineSlot
	header models.ResultHeader
}

// Build returns a fresh matrix. Results under slots outside the canonical
// list are ignored; an empty action counts as WAIT.
func (b *Builder) Build(results map[models.EngineSlot]models.EngineResult) models.FusionMatrix {
	m := models.FusionMatrix{
		Results:            make(map[models.EngineSlot]models.EngineResult, len(results)),
		ConsensusAction:    models.ActionWait,
		ActionDistribution: make(map[models.Action]int),
		Conflicts:          []models.Conflict{},
		Correlations:       []models.Correlation{},
		BuiltAt:            b.now(),
	}

	entries := make([]entry, 0, len(results))
	for _, slot := range models.CanonicalSlots {
		r, ok := results[slot]
		if !ok || r == nil {
			continue
		}
		h := r.Header()
		if h.Action == "" {
			h.Action = models.ActionWait
		}
		m.Results[slot] = r
		entries = append(entries, entry{slot: slot, header: h})
	}
	if len(entries) == 0 {
		return m
	}

	total := 0.0
	order := make([]models.Action, 0, len(entries))
	for _, e := range entries {
		total += e.header.Confidence
		if m.ActionDistribution[e.header.Action] == 0 {
			order = append(order, e.header.Action)
		}
		m.ActionDistribution[e.header.Action]++
	}
	m.AverageConfidence = total / float64(len(entries))

	best := 0
	for _, a := range order {
		if n := m.ActionDistribution[a]; n > best {
			best = n
			m.ConsensusAction = a
		}
	}
	m.ConsensusStrength = float64(best) / float64(len(entries)) * 100
	m.ConflictLevel = 100 - m.ConsensusStrength

	m.OverallRisk = m.AverageConfidence
	if r, ok := riskResult(results[models.SlotRisk]); ok {
		m.OverallRisk = r.Score
	}
	m.SignalQuality = 0.6*m.AverageConfidence + 0.4*m.ConsensusStrength

	m.Conflicts = detectConflicts(results, entries, len(order))
	m.Correlations = correlate(entries)
	return m
}

func detectConflicts(results map[models.EngineSlot]models.EngineResult, entries []entry, distinct int) []models.Conflict {
	out := []models.Conflict{}

	if distinct > 2 {
		slots := make([]models.EngineSlot, len(entries))
		for i, e := range entries {
			slots[i] = e.slot
		}
		out = append(out, models.Conflict{
			Type:        models.ConflictActionDivergence,
			Engines:     slots,
			Description: fmt.Sprintf("%d distinct actions recommended", distinct),
			Severity:    50 + 10*distinct,
		})
	}

	if shield, ok := shieldResult(results[models.SlotShield]); ok && shield.Active {
		if exec := results[models.SlotExecution]; exec != nil {
			if a := actionOf(exec); a != models.ActionHold && a != models.ActionWait {
				out = append(out, models.Conflict{
					Type:        models.ConflictShieldExecution,
					Engines:     []models.EngineSlot{models.SlotShield, models.SlotExecution},
					Description: fmt.Sprintf("shield active while execution recommends %s", a),
					Severity:    severityShieldExecution,
				})
			}
		}
	}

	if vol := results[models.SlotVolatility]; vol != nil && actionOf(vol) == models.ActionHalt {
		if pred := results[models.SlotPrediction]; pred != nil {
			if a := actionOf(pred); a != models.ActionHold {
				out = append(out, models.Conflict{
					Type:        models.ConflictVolatilityHalt,
					Engines:     []models.EngineSlot{models.SlotVolatility, models.SlotPrediction},
					Description: fmt.Sprintf("volatility advises HALT while prediction recommends %s", a),
					Severity:    severityVolatilityHalt,
				})
			}
		}
	}

	if threat, ok := threatResult(results[models.SlotThreat]); ok && threat.Score > threatScoreLimit {
		if dec := results[models.SlotDecision]; dec != nil {
			if a := actionOf(dec); a != models.ActionHold {
				out = append(out, models.Conflict{
					Type:        models.ConflictThreatDecision,
					Engines:     []models.EngineSlot{models.SlotThreat, models.SlotDecision},
					Description: fmt.Sprintf("threat score %.0f while decision recommends %s", threat.Score, a),
					Severity:    severityThreatDecision,
				})
			}
		}
	}

	return out
}

func correlate(entries []entry) []models.Correlation {
	out := make([]models.Correlation, 0, len(entries)*(len(entries)-1)/2)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].header, entries[j].header
			v := 1 - math.Abs(a.Confidence-b.Confidence)/100
			if a.Action != b.Action {
				v = -v
			}
			out = append(out, models.Correlation{A: entries[i].slot, B: entries[j].slot, Value: v})
		}
	}
	return out
}

// Quality derives a single 0-100 quality figure from a built matrix.
func Quality(m models.FusionMatrix) float64 {
	q := m.SignalQuality - 5*float64(len(m.Conflicts))
	if m.ConsensusStrength < 50 {
		q -= 20
	}
	if len(m.Correlations) > 0 {
		sum := 0.0
		for _, c := range m.Correlations {
			sum += math.Abs(c.Value)
		}
		q += 10 * sum / float64(len(m.Correlations))
	}
	return math.Max(0, math.Min(100, q))
}

func actionOf(r models.EngineResult) models.Action {
	a := r.Header().Action
	if a == "" {
		return models.ActionWait
	}
	return a
}

func shieldResult(r models.EngineResult) (models.ShieldResult, bool) {
	switch v := r.(type) {
	case models.ShieldResult:
		return v, true
	case *models.ShieldResult:
		if v != nil {
			return *v, true
		}
	}
	return models.ShieldResult{}, false
}

func threatResult(r models.EngineResult) (models.ThreatResult, bool) {
	switch v := r.(type) {
	case models.ThreatResult:
		return v, true
	case *models.ThreatResult:
		if v != nil {
			return *v, true
		}
	}
	return models.ThreatResult{}, false
}

func riskResult(r models.EngineResult) (models.RiskResult, bool) {
	switch v := r.(type) {
	case models.RiskResult:
		return v, true
	case *models.RiskResult:
		if v != nil {
			return *v, true
		}
	}
	return models.RiskResult{}, false
}
