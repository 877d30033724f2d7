package models

// CheckName identifies a micro-check consumed by the reactor.
type CheckName string

const (
	CheckSpread     CheckName = "spread"
	CheckLatency    CheckName = "latency"
	CheckPressure   CheckName = "pressure"
	CheckVolatility CheckName = "volatility"
	CheckReversal   CheckName = "reversal"
)

// KnownChecks lists every micro-check the default rule set reads.
var KnownChecks = []CheckName{CheckSpread, CheckLatency, CheckPressure, CheckVolatility, CheckReversal}

// MicroCheck is a single threshold-based sub-validation.
type MicroCheck struct {
	Name      CheckName `json:"name" validate:"required"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Passed    bool      `json:"passed"`
	Severity  Priority  `json:"severity"`
	Score     float64   `json:"score"`
}

// NeutralCheck is substituted for an absent micro-check.
func NeutralCheck(name CheckName) MicroCheck {
	return MicroCheck{Name: name, Passed: true, Score: 50, Severity: PriorityLow}
}

// RuleResult is the stateless outcome of one rule evaluation.
type RuleResult struct {
	Rule      string  `json:"rule"`
	Passed    bool    `json:"passed"`
	Block     bool    `json:"block"`
	DelayMs   int64   `json:"delay_ms"`
	ScaleDown float64 `json:"scale_down"`
	Reason    string  `json:"reason"`
	Priority  int     `json:"priority"`
}

// ExecutionDecision is the single command the reactor derives from all rules.
type ExecutionDecision struct {
	ShouldExecute  bool         `json:"should_execute"`
	ShouldCancel   bool         `json:"should_cancel"`
	ShouldDelay    bool         `json:"should_delay"`
	ShouldScale    bool         `json:"should_scale"`
	MaxDelayMs     int64        `json:"max_delay_ms"`
	MinScaleDown   float64      `json:"min_scale_down"`
	EmergencyAbort bool         `json:"emergency_abort"`
	PassedCount    int          `json:"passed_count"`
	Confidence     float64      `json:"confidence"`
	Results        []RuleResult `json:"results"`
	Reason         string       `json:"reason"`
}
