package reactor

import (
	"fmt"
	"math"

	"RiskPulse/internal/domain/models"
)

const (
	RuleEmergencyStop = "emergency-stop"
	RuleLatency       = "latency-safety"
	RuleSpread        = "spread-tightness"
	RuleVolatility    = "volatility-safety"
	RulePressure      = "pressure-favorability"
	RuleNoReversal    = "no-reversal"

	// EmergencyPriority is reserved for the emergency-stop rule.
	EmergencyPriority = 10
)

// CheckSet indexes micro-checks by name. Missing checks read as neutral.
type CheckSet map[models.CheckName]models.MicroCheck

// NewCheckSet indexes checks and fills every known check that is absent
// with the neutral default. Later duplicates win.
func NewCheckSet(checks []models.MicroCheck) CheckSet {
	set := make(CheckSet, len(models.KnownChecks)+len(checks))
	for _, name := range models.KnownChecks {
		set[name] = models.NeutralCheck(name)
	}
	for _, c := range checks {
		set[c.Name] = c
	}
	return set
}

func (s CheckSet) Get(name models.CheckName) models.MicroCheck {
	if c, ok := s[name]; ok {
		return c
	}
	return models.NeutralCheck(name)
}

// Rule is a pure evaluation over the check set and a global confidence (0-100).
type Rule interface {
	Name() string
	Priority() int
	Evaluate(checks CheckSet, confidence float64) models.RuleResult
}

// verdict is what a threshold rule decides for a ratio above or below 1.
type verdict struct {
	block  bool
	delay  float64
	scale  float64
	reason string
}

// thresholdRule reads one check and judges its value/threshold ratio.
// A non-positive threshold is a neutral pass.
type thresholdRule struct {
	name     string
	priority int
	check    models.CheckName
	judge    func(r, value, threshold float64) verdict
}

func (t thresholdRule) Name() string  { return t.name }
func (t thresholdRule) Priority() int { return t.priority }

func (t thresholdRule) Evaluate(checks CheckSet, _ float64) models.RuleResult {
	c := checks.Get(t.check)
	res := models.RuleResult{Rule: t.name, Priority: t.priority, ScaleDown: 1}
	if c.Threshold <= 0 {
		res.Passed = true
		res.Reason = fmt.Sprintf("%s check neutral", t.check)
		return res
	}

	v := t.judge(c.Value/c.Threshold, c.Value, c.Threshold)
	res.Reason = v.reason
	if v.block {
		res.Block = true
		return res
	}
	if v.delay > 0 {
		res.DelayMs = int64(math.Round(v.delay))
	}
	if v.scale > 0 && v.scale < 1 {
		res.ScaleDown = v.scale
	}
	res.Passed = res.DelayMs == 0 && res.ScaleDown == 1
	return res
}

func SpreadTightness() Rule {
	return thresholdRule{name: RuleSpread, priority: 8, check: models.CheckSpread, judge: func(r, v, th float64) verdict {
		switch {
		case r > 1.5:
			return verdict{block: true, reason: fmt.Sprintf("spread %.4g exceeds 1.5x threshold %.4g", v, th)}
		case r > 1:
			return verdict{delay: (r - 1) * 2000, scale: 1 - (r - 1), reason: fmt.Sprintf("spread %.4g above threshold %.4g", v, th)}
		}
		return verdict{reason: "spread within threshold"}
	}}
}

// LatencySafety delays by the excess in milliseconds and never scales.
func LatencySafety() Rule {
	return thresholdRule{name: RuleLatency, priority: 9, check: models.CheckLatency, judge: func(r, v, th float64) verdict {
		switch {
		case r > 1.5:
			return verdict{block: true, reason: fmt.Sprintf("latency %.4gms exceeds 1.5x threshold %.4gms", v, th)}
		case r > 1:
			return verdict{delay: v - th, reason: fmt.Sprintf("latency %.4gms above threshold %.4gms", v, th)}
		}
		return verdict{reason: "latency within threshold"}
	}}
}

// PressureFavorability is inverted: low pressure is the unfavourable side.
func PressureFavorability() Rule {
	return thresholdRule{name: RulePressure, priority: 6, check: models.CheckPressure, judge: func(r, v, th float64) verdict {
		switch {
		case r < 0.5:
			return verdict{block: true, reason: fmt.Sprintf("pressure %.4g below half of threshold %.4g", v, th)}
		case r < 1:
			d := 1 - r
			return verdict{delay: d * 2000, scale: 1 - d, reason: fmt.Sprintf("pressure %.4g short of threshold %.4g", v, th)}
		}
		return verdict{reason: "pressure favorable"}
	}}
}

func VolatilitySafety() Rule {
	return thresholdRule{name: RuleVolatility, priority: 7, check: models.CheckVolatility, judge: func(r, v, th float64) verdict {
		switch {
		case r > 1.3:
			return verdict{block: true, reason: fmt.Sprintf("volatility %.4g exceeds 1.3x threshold %.4g", v, th)}
		case r > 1:
			return verdict{scale: 1 - 2*(r-1), reason: fmt.Sprintf("volatility %.4g above threshold %.4g", v, th)}
		}
		return verdict{reason: "volatility within threshold"}
	}}
}

func NoReversal() Rule {
	return thresholdRule{name: RuleNoReversal, priority: 5, check: models.CheckReversal, judge: func(r, v, th float64) verdict {
		switch {
		case r > 1.2:
			return verdict{block: true, reason: fmt.Sprintf("reversal signal %.4g exceeds 1.2x threshold %.4g", v, th)}
		case r > 1:
			return verdict{delay: (r - 1) * 5000, reason: fmt.Sprintf("reversal signal %.4g above threshold %.4g", v, th)}
		}
		return verdict{reason: "no reversal"}
	}}
}

type emergencyStop struct{}

// EmergencyStop inspects the whole check set and overall confidence.
func EmergencyStop() Rule { return emergencyStop{} }

func (emergencyStop) Name() string  { return RuleEmergencyStop }
func (emergencyStop) Priority() int { return EmergencyPriority }

func (emergencyStop) Evaluate(checks CheckSet, confidence float64) models.RuleResult {
	res := models.RuleResult{Rule: RuleEmergencyStop, Priority: EmergencyPriority, ScaleDown: 1}

	critical, failed := 0, 0
	for _, c := range checks {
		if c.Severity == models.PriorityCritical {
			critical++
		}
		if !c.Passed {
			failed++
		}
	}
	spread := checks.Get(models.CheckSpread)

	switch {
	case critical >= 3:
		res.Reason = fmt.Sprintf("%d critical checks", critical)
	case len(checks) > 0 && failed == len(checks):
		res.Reason = "all checks failed"
	case confidence < 30 && critical >= 2:
		res.Reason = fmt.Sprintf("confidence %.0f with %d critical checks", confidence, critical)
	case spread.Threshold > 0 && spread.Value > 2*spread.Threshold:
		res.Reason = fmt.Sprintf("extreme spread %.4g over threshold %.4g", spread.Value, spread.Threshold)
	default:
		res.Passed = true
		res.Reason = "no emergency condition"
		return res
	}
	res.Block = true
	return res
}

// DefaultRules returns the standard rule set.
func DefaultRules() []Rule {
	return []Rule{
		EmergencyStop(),
		LatencySafety(),
		SpreadTightness(),
		VolatilitySafety(),
		PressureFavorability(),
		NoReversal(),
	}
}
