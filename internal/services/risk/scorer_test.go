package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"RiskPulse/internal/domain/models"
)

type fakeCorrelation struct {
	graph models.CorrelationGraph
	err   error
	block bool
}

func (f fakeCorrelation) GetGraph(ctx context.Context) (models.CorrelationGraph, error) {
	if f.block {
		<-ctx.Done()
		return models.CorrelationGraph{}, ctx.Err()
	}
	return f.graph, f.err
}

type fakeRootCause struct{ nodes int }

func (f fakeRootCause) GetSummary(context.Context) (models.RootCauseSummary, error) {
	return models.RootCauseSummary{NodeCount: f.nodes}, nil
}

type fakeForecast struct{ shift float64 }

func (f fakeForecast) Forecast(context.Context) (models.Forecast, error) {
	return models.Forecast{RiskShift: f.shift}, nil
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func inputs(nodes int, shift float64, coeffs ...float64) Inputs {
	in := Inputs{RootCause: models.RootCauseSummary{NodeCount: nodes}, Forecast: models.Forecast{RiskShift: shift}}
	for _, c := range coeffs {
		in.Graph.Pairs = append(in.Graph.Pairs, models.CorrelationPair{Source: "a", Target: "b", Coefficient: c})
	}
	return in
}

func TestTrendSequence(t *testing.T) {
	s := NewScorer(nil, nil, nil)

	first := s.Score(inputs(10, -2))
	if !approx(first.Score, 40) || first.Trend != models.TrendStable {
		t.Fatalf("first = %v %s, want 40 STABLE", first.Score, first.Trend)
	}

	second := s.Score(inputs(10, -1.84))
	if !approx(second.Score, 41) || second.Trend != models.TrendStable {
		t.Fatalf("second = %v %s, want 41 STABLE", second.Score, second.Trend)
	}

	third := s.Score(inputs(10, 0.4))
	if !approx(third.Score, 55) || third.Trend != models.TrendUp {
		t.Fatalf("third = %v %s, want 55 UP", third.Score, third.Trend)
	}
	if diff := cmp.Diff([]string{FactorRootCause, FactorPrediction}, third.Factors); diff != "" {
		t.Fatalf("factors (-want +got):\n%s", diff)
	}
	if third.Classification != models.RiskOrange {
		t.Fatalf("classification = %s", third.Classification)
	}

	fourth := s.Score(inputs(0, -2))
	if fourth.Trend != models.TrendDown {
		t.Fatalf("fourth trend = %s, want DOWN", fourth.Trend)
	}

	s.Reset()
	if got := s.Score(inputs(10, 2)).Trend; got != models.TrendStable {
		t.Fatalf("trend after reset = %s, want STABLE", got)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := map[float64]models.RiskClass{
		0:   models.RiskGreen,
		24:  models.RiskGreen,
		25:  models.RiskYellow,
		49:  models.RiskYellow,
		50:  models.RiskOrange,
		74:  models.RiskOrange,
		75:  models.RiskRed,
		100: models.RiskRed,
	}
	for score, want := range cases {
		if got := Classify(score); got != want {
			t.Errorf("Classify(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestScoreBoundsAndMissingInputs(t *testing.T) {
	s := NewScorer(nil, nil, nil)
	cases := []Inputs{
		{},
		inputs(-4, -9),
		inputs(1000, 50, 3, -7, 0.9),
		inputs(5, math.NaN()),
	}
	for _, in := range cases {
		got := s.Score(in)
		if got.Score < 0 || got.Score > 100 || math.IsNaN(got.Score) {
			t.Fatalf("score %v out of range for %+v", got.Score, in)
		}
		if got.Confidence < 0.6 || got.Confidence > 1 {
			t.Fatalf("confidence %v out of range", got.Confidence)
		}
	}
	if got := s.Score(Inputs{}); got.Score != 12.5 || len(got.Factors) != 0 {
		t.Fatalf("empty inputs = %+v, want score 12.5 and no factors", got)
	}
}

func TestNormalisation(t *testing.T) {
	if got := CorrelationIntensity(nil); got != 0 {
		t.Fatalf("empty intensity = %v", got)
	}
	pairs := []models.CorrelationPair{{Coefficient: 0.8}, {Coefficient: -0.4}}
	if got := CorrelationIntensity(pairs); !approx(got, 0.6) {
		t.Fatalf("intensity = %v, want 0.6", got)
	}
	if got := RootCauseWeight(25); got != 1 {
		t.Fatalf("root cause weight = %v, want 1", got)
	}
	if got := PredictionWeight(0); got != 0.5 {
		t.Fatalf("prediction weight = %v, want 0.5", got)
	}
}

func TestConfidence(t *testing.T) {
	s := NewScorer(nil, nil, nil)
	if got := s.Score(inputs(0, 0, 0.1, 0.2, 0.3)).Confidence; !approx(got, 0.72) {
		t.Fatalf("confidence = %v, want 0.72", got)
	}
	coeffs := make([]float64, 20)
	if got := s.Score(inputs(0, 0, coeffs...)).Confidence; got != 1 {
		t.Fatalf("confidence = %v, want 1", got)
	}
}

func TestCalculateReadsCollaborators(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScorer(
		fakeCorrelation{graph: models.CorrelationGraph{Pairs: []models.CorrelationPair{{Coefficient: 1}}}},
		fakeRootCause{nodes: 10},
		fakeForecast{shift: 2},
		WithClock(func() time.Time { return ts }),
	)
	got, err := s.Calculate(context.Background())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !approx(got.Score, 100) || got.Classification != models.RiskRed || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected score %+v", got)
	}
	if len(got.Factors) != 3 {
		t.Fatalf("factors = %v", got.Factors)
	}
}

func TestCalculatePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewScorer(fakeCorrelation{err: boom}, fakeRootCause{}, fakeForecast{})
	if _, err := s.Calculate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestReadTimeout(t *testing.T) {
	s := NewScorer(fakeCorrelation{block: true}, fakeRootCause{}, fakeForecast{}, WithReadTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := s.Calculate(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("read did not respect its deadline")
	}
}
