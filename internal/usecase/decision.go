package usecase

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	svcmetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/services/fusion"
	"RiskPulse/internal/services/reactor"
	"RiskPulse/pkg/logger"
)

// DecisionInput is one pre-trade evaluation: the engines' latest verdicts and
// the micro checks measured for the candidate order.
type DecisionInput struct {
	Results map[models.EngineSlot]models.EngineResult
	Checks  []models.MicroCheck
}

type DecisionOutcome struct {
	Matrix   models.FusionMatrix      `json:"matrix"`
	Quality  float64                  `json:"quality"`
	Decision models.ExecutionDecision `json:"decision"`
}

// DecisionService fuses engine results and runs the rule engine with the
// fused quality as its confidence. Decisions are audited when a history
// store is configured; audit failures never change the decision.
type DecisionService struct {
	builder *fusion.Builder
	reactor *reactor.Engine
	history domrepo.HistoryStore
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewDecisionService(builder *fusion.Builder, engine *reactor.Engine, history domrepo.HistoryStore, metrics domrepo.Metrics, log *logger.Logger) *DecisionService {
	if builder == nil {
		builder = fusion.NewBuilder()
	}
	if engine == nil {
		engine = reactor.NewEngine()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DecisionService{builder: builder, reactor: engine, history: history, metrics: metrics, log: log}
}

func (s *DecisionService) Decide(ctx context.Context, in DecisionInput) (DecisionOutcome, error) {
	start := time.Now()
	for _, c := range in.Checks {
		if c.Name == "" {
			return DecisionOutcome{}, fmt.Errorf("decide: micro check without name")
		}
	}

	m := s.builder.Build(in.Results)
	q := fusion.Quality(m)
	d := s.reactor.Evaluate(in.Checks, q)
	out := DecisionOutcome{Matrix: m, Quality: q, Decision: d}

	svcmetrics.EngineEvaluations.WithLabelValues("decision", decisionOutcome(d)).Inc()
	if s.metrics != nil {
		s.metrics.RecordLatency("decision", time.Since(start).Seconds())
	}

	if s.history != nil {
		if err := s.history.StoreDecision(ctx, &out.Decision, &out.Matrix); err != nil {
			s.log.Error("decision audit failed", logger.Error(err))
			if s.metrics != nil {
				s.metrics.RecordError("decision_audit")
			}
		}
	}
	s.log.Debug("decision evaluated",
		logger.String("consensus", string(m.ConsensusAction)),
		logger.Float64("quality", q),
		logger.Bool("execute", d.ShouldExecute),
		logger.String("reason", d.Reason),
	)
	return out, nil
}

func decisionOutcome(d models.ExecutionDecision) string {
	switch {
	case d.EmergencyAbort:
		return "emergency_abort"
	case d.ShouldCancel:
		return "cancel"
	case d.ShouldExecute:
		return "execute"
	default:
		return "hold"
	}
}
