package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
)

const (
	WeightCorrelation = 0.35
	WeightRootCause   = 0.40
	WeightPrediction  = 0.25

	// FactorThreshold is the weight above which an input is reported as a factor.
	FactorThreshold = 0.5
	// TrendDeadBand is the score delta below which the trend stays STABLE.
	TrendDeadBand = 2.0

	FactorCorrelation = "correlation_intensity"
	FactorRootCause   = "root_cause_depth"
	FactorPrediction  = "prediction_shift"
)

// Inputs are the three collaborator snapshots a score is computed from.
type Inputs struct {
	Graph     models.CorrelationGraph
	RootCause models.RootCauseSummary
	Forecast  models.Forecast
}

// Scorer combines correlation, root-cause and forecast snapshots into a
// composite score. It owns the previous score used for the trend.
type Scorer struct {
	correlation domsvc.CorrelationProvider
	rootCause   domsvc.RootCauseProvider
	forecast    domsvc.ForecastProvider
	readTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	previous *float64
}

type Option func(*Scorer)

func WithReadTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScorer(c domsvc.CorrelationProvider, r domsvc.RootCauseProvider, f domsvc.ForecastProvider, opts ...Option) *Scorer {
	s := &Scorer{
		correlation: c,
		rootCause:   r,
		forecast:    f,
		readTimeout: 2 * time.Second,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Read fetches all three snapshots concurrently, each under the read timeout.
func (s *Scorer) Read(ctx context.Context) (Inputs, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.readTimeout)
		defer cancel()
		graph, err := s.correlation.GetGraph(cctx)
		if err != nil {
			return fmt.Errorf("read correlation graph: %w", err)
		}
		in.Graph = graph
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.readTimeout)
		defer cancel()
		sum, err := s.rootCause.GetSummary(cctx)
		if err != nil {
			return fmt.Errorf("read root cause summary: %w", err)
		}
		in.RootCause = sum
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.readTimeout)
		defer cancel()
		fc, err := s.forecast.Forecast(cctx)
		if err != nil {
			return fmt.Errorf("read forecast: %w", err)
		}
		in.Forecast = fc
		return nil
	})
	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

// Calculate reads the collaborators and scores the result.
func (s *Scorer) Calculate(ctx context.Context) (models.RiskScore, error) {
	in, err := s.Read(ctx)
	if err != nil {
		return models.RiskScore{}, err
	}
	return s.Score(in), nil
}

// Score computes the composite score and advances the trend state.
func (s *Scorer) Score(in Inputs) models.RiskScore {
	c := CorrelationIntensity(in.Graph.Pairs)
	r := RootCauseWeight(in.RootCause.NodeCount)
	p := PredictionWeight(in.Forecast.RiskShift)

	score := clamp((WeightCorrelation*c+WeightRootCause*r+WeightPrediction*p)*100, 0, 100)

	factors := make([]string, 0, 3)
	if c > FactorThreshold {
		factors = append(factors, FactorCorrelation)
	}
	if r > FactorThreshold {
		factors = append(factors, FactorRootCause)
	}
	if p > FactorThreshold {
		factors = append(factors, FactorPrediction)
	}

	s.mu.Lock()
	trend := models.TrendStable
	if s.previous != nil {
		trend = TrendOf(*s.previous, score)
	}
	s.previous = &score
	s.mu.Unlock()

	return models.RiskScore{
		Score:          score,
		Classification: Classify(score),
		Confidence:     math.Min(1, 0.6+0.04*float64(len(in.Graph.Pairs))),
		Factors:        factors,
		Trend:          trend,
		Timestamp:      s.now(),
	}
}

// Reset forgets the previous score.
func (s *Scorer) Reset() {
	s.mu.Lock()
	s.previous = nil
	s.mu.Unlock()
}

// CorrelationIntensity is the mean absolute coefficient; empty input is 0.
func CorrelationIntensity(pairs []models.CorrelationPair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pairs {
		sum += math.Abs(p.Coefficient)
	}
	return clamp(sum/float64(len(pairs)), 0, 1)
}

func RootCauseWeight(nodeCount int) float64 {
	return clamp(float64(nodeCount)/10, 0, 1)
}

// PredictionWeight rescales a risk shift from [-2,2] to [0,1].
func PredictionWeight(riskShift float64) float64 {
	return clamp((riskShift+2)/4, 0, 1)
}

// Classify maps a score to its class; upper bounds are exclusive.
func Classify(score float64) models.RiskClass {
	switch {
	case score < 25:
		return models.RiskGreen
	case score < 50:
		return models.RiskYellow
	case score < 75:
		return models.RiskOrange
	default:
		return models.RiskRed
	}
}

func TrendOf(previous, current float64) models.Trend {
	delta := current - previous
	switch {
	case math.Abs(delta) < TrendDeadBand:
		return models.TrendStable
	case delta > 0:
		return models.TrendUp
	default:
		return models.TrendDown
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
