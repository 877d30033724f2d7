package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is the execution recommendation an engine emits.
type Action string

const (
	ActionBuy    Action = "BUY"
	ActionSell   Action = "SELL"
	ActionHold   Action = "HOLD"
	ActionClose  Action = "CLOSE"
	ActionReduce Action = "REDUCE"
	ActionHalt   Action = "HALT"
	ActionWait   Action = "WAIT"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionClose, ActionReduce, ActionHalt, ActionWait:
		return true
	}
	return false
}

// Priority is shared by engine results and micro-check severities.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// EngineSlot names a capability position in the fusion matrix.
type EngineSlot string

const (
	SlotShield     EngineSlot = "shield"
	SlotThreat     EngineSlot = "threat"
	SlotRootCause  EngineSlot = "root_cause"
	SlotPrediction EngineSlot = "prediction"
	SlotVolatility EngineSlot = "volatility"
	SlotExecution  EngineSlot = "execution"
	SlotDecision   EngineSlot = "decision"
	SlotFlow       EngineSlot = "flow"
	SlotPattern    EngineSlot = "pattern"
	SlotRisk       EngineSlot = "risk"
)

// CanonicalSlots is the fixed iteration order used for every fusion
// aggregate. Consensus ties resolve to the earliest slot in this list.
var CanonicalSlots = []EngineSlot{
	SlotShield,
	SlotThreat,
	SlotRootCause,
	SlotPrediction,
	SlotVolatility,
	SlotExecution,
	SlotDecision,
	SlotFlow,
	SlotPattern,
	SlotRisk,
}

// ResultHeader is the part every engine result shares.
type ResultHeader struct {
	Engine     string         `json:"engine"`
	Action     Action         `json:"action"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Priority   Priority       `json:"priority"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EngineResult is implemented by every engine-specific result variant.
type EngineResult interface {
	Slot() EngineSlot
	Header() ResultHeader
}

type ShieldResult struct {
	ResultHeader
	Active         bool     `json:"active"`
	BlockedReasons []string `json:"blocked_reasons,omitempty"`
}

type ThreatResult struct {
	ResultHeader
	Score   float64  `json:"score"`
	Threats []string `json:"threats,omitempty"`
}

type RootCauseResult struct {
	ResultHeader
	PrimaryCause string `json:"primary_cause"`
	NodeCount    int    `json:"node_count"`
}

type PredictionResult struct {
	ResultHeader
	Horizon   string `json:"horizon"`
	Direction string `json:"direction"`
}

type VolatilityResult struct {
	ResultHeader
	Level  float64 `json:"level"`
	Regime string  `json:"regime"`
}

type ExecutionResult struct {
	ResultHeader
	SlippageBps float64 `json:"slippage_bps"`
	Ready       bool    `json:"ready"`
}

type DecisionResult struct {
	ResultHeader
	Rationale []string `json:"rationale,omitempty"`
}

type FlowResult struct {
	ResultHeader
	Pressure  float64 `json:"pressure"`
	Imbalance float64 `json:"imbalance"`
}

type PatternResult struct {
	ResultHeader
	Patterns   []string `json:"patterns,omitempty"`
	Similarity float64  `json:"similarity"`
}

type RiskResult struct {
	ResultHeader
	Score          float64   `json:"score"`
	Classification RiskClass `json:"classification"`
}

func (r ShieldResult) Slot() EngineSlot     { return SlotShield }
func (r ThreatResult) Slot() EngineSlot     { return SlotThreat }
func (r RootCauseResult) Slot() EngineSlot  { return SlotRootCause }
func (r PredictionResult) Slot() EngineSlot { return SlotPrediction }
func (r VolatilityResult) Slot() EngineSlot { return SlotVolatility }
func (r ExecutionResult) Slot() EngineSlot  { return SlotExecution }
func (r DecisionResult) Slot() EngineSlot   { return SlotDecision }
func (r FlowResult) Slot() EngineSlot       { return SlotFlow }
func (r PatternResult) Slot() EngineSlot    { return SlotPattern }
func (r RiskResult) Slot() EngineSlot       { return SlotRisk }

func (r ShieldResult) Header() ResultHeader     { return r.ResultHeader }
func (r ThreatResult) Header() ResultHeader     { return r.ResultHeader }
func (r RootCauseResult) Header() ResultHeader  { return r.ResultHeader }
func (r PredictionResult) Header() ResultHeader { return r.ResultHeader }
func (r VolatilityResult) Header() ResultHeader { return r.ResultHeader }
func (r ExecutionResult) Header() ResultHeader  { return r.ResultHeader }
func (r DecisionResult) Header() ResultHeader   { return r.ResultHeader }
func (r FlowResult) Header() ResultHeader       { return r.ResultHeader }
func (r PatternResult) Header() ResultHeader    { return r.ResultHeader }
func (r RiskResult) Header() ResultHeader       { return r.ResultHeader }

// DecodeEngineResult decodes the variant that belongs to slot.
func DecodeEngineResult(slot EngineSlot, raw json.RawMessage) (EngineResult, error) {
	var (
		res EngineResult
		err error
	)
	switch slot {
	case SlotShield:
		var v ShieldResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotThreat:
		var v ThreatResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotRootCause:
		var v RootCauseResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotPrediction:
		var v PredictionResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotVolatility:
		var v VolatilityResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotExecution:
		var v ExecutionResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotDecision:
		var v DecisionResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotFlow:
		var v FlowResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotPattern:
		var v PatternResult
		err = json.Unmarshal(raw, &v)
		res = v
	case SlotRisk:
		var v RiskResult
		err = json.Unmarshal(raw, &v)
		res = v
	default:
		return nil, fmt.Errorf("unknown engine slot %q", slot)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", slot, err)
	}
	if a := res.Header().Action; a != "" && !a.IsValid() {
		return nil, fmt.Errorf("decode %s result: invalid action %q", slot, a)
	}
	return res, nil
}

// DecodeEngineResults decodes a slot-keyed JSON object.
func DecodeEngineResults(raw map[EngineSlot]json.RawMessage) (map[EngineSlot]EngineResult, error) {
	out := make(map[EngineSlot]EngineResult, len(raw))
	for slot, msg := range raw {
		r, err := DecodeEngineResult(slot, msg)
		if err != nil {
			return nil, err
		}
		out[slot] = r
	}
	return out, nil
}

// ConflictType identifies which conflict rule fired.
type ConflictType string

const (
	ConflictActionDivergence ConflictType = "action_divergence"
	ConflictShieldExecution  ConflictType = "shield_vs_execution"
	ConflictVolatilityHalt   ConflictType = "volatility_halt_vs_prediction"
	ConflictThreatDecision   ConflictType = "threat_vs_decision"
)

// Conflict is one detected disagreement between fused results.
type Conflict struct {
	Type        ConflictType `json:"type"`
	Engines     []EngineSlot `json:"engines"`
	Description string       `json:"description"`
	Severity    int          `json:"severity"`
}

// Correlation is the agreement score for one unordered pair of results.
type Correlation struct {
	A     EngineSlot `json:"a"`
	B     EngineSlot `json:"b"`
	Value float64    `json:"value"`
}

// FusionMatrix is the merged view over a set of engine results.
// It is rebuilt on every merge and never mutated afterwards.
type FusionMatrix struct {
	Results            map[EngineSlot]EngineResult `json:"results"`
	AverageConfidence  float64                     `json:"average_confidence"`
	ConsensusAction    Action                      `json:"consensus_action"`
	ConsensusStrength  float64                     `json:"consensus_strength"`
	ConflictLevel      float64                     `json:"conflict_level"`
	OverallRisk        float64                     `json:"overall_risk"`
	SignalQuality      float64                     `json:"signal_quality"`
	ActionDistribution map[Action]int              `json:"action_distribution"`
	Conflicts          []Conflict                  `json:"conflicts"`
	Correlations       []Correlation               `json:"correlations"`
	BuiltAt            time.Time                   `json:"built_at"`
}
