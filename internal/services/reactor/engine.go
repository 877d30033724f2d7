package reactor

import (
	"fmt"
	"sort"
	"strings"

	"RiskPulse/internal/domain/models"
)

// MinPassedRules is the number of clean passes required to execute. It is
// fixed, so rule sets with fewer rules can never execute.
const MinPassedRules = 4

// Engine evaluates rules in priority order and folds their results into
// one ExecutionDecision. It never fails.
type Engine struct {
	rules []Rule
}

type Option func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = append([]Rule(nil), rules...)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, o := range opts {
		o(e)
	}
	sortRules(e.rules)
	return e
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// sortRules puts emergency-stop first, then priority descending, then name.
func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		ei, ej := rules[i].Name() == RuleEmergencyStop, rules[j].Name() == RuleEmergencyStop
		if ei != ej {
			return ei
		}
		if pi, pj := rules[i].Priority(), rules[j].Priority(); pi != pj {
			return pi > pj
		}
		return rules[i].Name() < rules[j].Name()
	})
}

// Evaluate runs every rule against checks and confidence (0-100).
func (e *Engine) Evaluate(checks []models.MicroCheck, confidence float64) models.ExecutionDecision {
	set := NewCheckSet(checks)

	d := models.ExecutionDecision{
		MinScaleDown: 1,
		Confidence:   confidence,
		Results:      make([]models.RuleResult, 0, len(e.rules)),
	}

	var blockers []string
	for _, rule := range e.rules {
		r := rule.Evaluate(set, confidence)
		d.Results = append(d.Results, r)

		if r.Passed {
			d.PassedCount++
		}
		if r.DelayMs > d.MaxDelayMs {
			d.MaxDelayMs = r.DelayMs
		}
		if r.ScaleDown < 1 && r.ScaleDown < d.MinScaleDown {
			d.MinScaleDown = r.ScaleDown
		}
		if r.Block {
			d.ShouldCancel = true
			blockers = append(blockers, r.Rule)
			if r.Rule == RuleEmergencyStop {
				d.EmergencyAbort = true
			}
			continue
		}
		if r.DelayMs > 0 {
			d.ShouldDelay = true
		}
		if r.ScaleDown < 1 {
			d.ShouldScale = true
		}
	}

	d.ShouldExecute = !d.ShouldCancel && d.PassedCount >= MinPassedRules
	d.Reason = reason(d, blockers, len(e.rules))
	return d
}

func reason(d models.ExecutionDecision, blockers []string, total int) string {
	switch {
	case d.EmergencyAbort:
		for _, r := range d.Results {
			if r.Rule == RuleEmergencyStop {
				return "emergency abort: " + r.Reason
			}
		}
		return "emergency abort"
	case d.ShouldCancel:
		return "blocked by " + strings.Join(blockers, ", ")
	case !d.ShouldExecute:
		return fmt.Sprintf("%d/%d rules passed, %d required", d.PassedCount, total, MinPassedRules)
	case d.ShouldDelay || d.ShouldScale:
		return fmt.Sprintf("execute with adjustments: delay %dms, scale %.2f", d.MaxDelayMs, d.MinScaleDown)
	}
	return fmt.Sprintf("execute: %d/%d rules passed", d.PassedCount, total)
}
