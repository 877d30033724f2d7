package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/risk"
	"RiskPulse/pkg/config"
)

type stubCorrelation struct {
	mu    sync.Mutex
	graph models.CorrelationGraph
	err   error
	calls int32
}

func (s *stubCorrelation) GetGraph(context.Context) (models.CorrelationGraph, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph, s.err
}

func (s *stubCorrelation) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type stubRootCause struct{ nodes int }

func (s stubRootCause) GetSummary(context.Context) (models.RootCauseSummary, error) {
	return models.RootCauseSummary{NodeCount: s.nodes}, nil
}

type stubForecast struct{ shift float64 }

func (s stubForecast) Forecast(context.Context) (models.Forecast, error) {
	return models.Forecast{RiskShift: s.shift}, nil
}

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

type recordingMetrics struct {
	mu     sync.Mutex
	cycles []models.Health
	scores []float64
	events []string
	errors []string
}

func (m *recordingMetrics) RecordCycle(_ float64, h models.Health) {
	m.mu.Lock()
	m.cycles = append(m.cycles, h)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordRiskScore(v float64) {
	m.mu.Lock()
	m.scores = append(m.scores, v)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordEvent(t string) {
	m.mu.Lock()
	m.events = append(m.events, t)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(t string) {
	m.mu.Lock()
	m.errors = append(m.errors, t)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

func calmScorer(corr *stubCorrelation) *risk.Scorer {
	return risk.NewScorer(corr, stubRootCause{nodes: 2}, stubForecast{shift: -2})
}

func newTestOrchestrator(t *testing.T, scorer *risk.Scorer, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	clock := &steppingClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Millisecond}
	opts = append([]OrchestratorOption{WithPollInterval(time.Hour), WithOrchestratorClock(clock.now)}, opts...)
	o := NewOrchestrator(scorer, nil, nil, opts...)
	t.Cleanup(o.Dispose)
	return o
}

func TestStartRunsFirstCycleSynchronously(t *testing.T) {
	o := newTestOrchestrator(t, calmScorer(&stubCorrelation{}))

	if o.State() != StateIdle || o.Payload() != nil {
		t.Fatalf("fresh orchestrator state=%s payload=%v", o.State(), o.Payload())
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := o.Payload()
	if p == nil {
		t.Fatalf("no payload after Start")
	}
	if p.ID == "" || p.Performance.Cycles != 1 || p.Performance.Health != models.HealthHealthy {
		t.Fatalf("payload %+v", p)
	}
	if p.Risk.Classification != models.RiskGreen {
		t.Fatalf("classification = %s, want GREEN", p.Risk.Classification)
	}
	if p.Performance.CycleTimeMs != 10 {
		t.Fatalf("cycle time = %v, want 10", p.Performance.CycleTimeMs)
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start err = %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	o := newTestOrchestrator(t, calmScorer(&stubCorrelation{}))
	ctx := context.Background()

	if err := o.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Pause from IDLE err = %v", err)
	}
	if err := o.Resume(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Resume from IDLE err = %v", err)
	}
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Pause(); err != nil || o.State() != StatePaused {
		t.Fatalf("Pause: %v state=%s", err, o.State())
	}
	if o.Payload() == nil {
		t.Fatalf("pause must keep the last payload")
	}
	if err := o.Resume(ctx); err != nil || o.State() != StateRunning {
		t.Fatalf("Resume: %v state=%s", err, o.State())
	}
	if got := o.Payload().Performance.Cycles; got != 2 {
		t.Fatalf("cycles after resume = %d, want 2", got)
	}
	if err := o.Stop(); err != nil || o.State() != StateIdle {
		t.Fatalf("Stop: %v state=%s", err, o.State())
	}
	if o.Payload() != nil || len(o.CycleHistory()) != 0 {
		t.Fatalf("stop must clear payload and history")
	}

	o.Dispose()
	if err := o.Start(ctx); !errors.Is(err, ErrOrchestratorDisposed) {
		t.Fatalf("Start after Dispose err = %v", err)
	}
	o.Dispose()
}

func TestCycleFailureEntersErrorState(t *testing.T) {
	corr := &stubCorrelation{}
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(t, calmScorer(corr), WithOrchestratorMetrics(metrics))
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	boom := errors.New("graph unavailable")
	corr.fail(boom)
	if err := o.RunOnce(ctx); !errors.Is(err, boom) {
		t.Fatalf("RunOnce err = %v, want boom", err)
	}
	if o.State() != StateError || o.Payload() != nil {
		t.Fatalf("state=%s payload=%v, want ERROR and no payload", o.State(), o.Payload())
	}
	if o.Status().LastError == "" {
		t.Fatalf("status does not report the failure")
	}
	if err := o.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Start from ERROR err = %v", err)
	}
	if diff := cmp.Diff([]string{"orchestrator_cycle"}, metrics.errors); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}

	corr.fail(nil)
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := o.Start(ctx); err != nil || o.State() != StateRunning {
		t.Fatalf("restart: %v state=%s", err, o.State())
	}
	if o.Status().LastError != "" {
		t.Fatalf("stop must clear the last error")
	}
}

func TestStartReportsFirstCycleError(t *testing.T) {
	corr := &stubCorrelation{err: errors.New("down")}
	o := newTestOrchestrator(t, calmScorer(corr))
	if err := o.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if o.State() != StateError {
		t.Fatalf("state = %s, want ERROR", o.State())
	}
}

func TestConditionalEvents(t *testing.T) {
	corr := &stubCorrelation{graph: models.CorrelationGraph{
		Pairs:            []models.CorrelationPair{{Source: "a", Target: "b", Coefficient: 1}},
		StrongLinks:      3,
		CascadesDetected: 1,
	}}
	scorer := risk.NewScorer(corr, stubRootCause{nodes: 10}, stubForecast{shift: 2})
	clock := &steppingClock{t: time.Unix(0, 0), step: 1500 * time.Millisecond}
	o := NewOrchestrator(scorer, nil, nil,
		WithPollInterval(time.Hour),
		WithOrchestratorClock(clock.now),
		WithPerformanceThreshold(time.Second),
		WithHighRiskThreshold(90),
	)
	defer o.Dispose()

	var mu sync.Mutex
	var got []EventType
	var events []Event
	for _, et := range EventTypes {
		o.On(et, func(_ context.Context, e Event) error {
			mu.Lock()
			got = append(got, e.Type)
			events = append(events, e)
			mu.Unlock()
			return nil
		})
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(EventTypes, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	for _, e := range events {
		if e.Payload == nil || e.ID == "" {
			t.Fatalf("event %s missing payload or id", e.Type)
		}
	}
	if d := events[1].HighRisk; d == nil || d.Score != 100 || d.Threshold != 90 {
		t.Fatalf("high risk detail %+v", d)
	}
	if d := events[2].Cascade; d == nil || d.DestabilizingLinks != 3 {
		t.Fatalf("cascade detail %+v", d)
	}
	if d := events[3].Performance; d == nil || d.Health != models.HealthDegraded || d.ThresholdMs != 1000 {
		t.Fatalf("performance detail %+v", d)
	}
}

func TestFailingHandlerDoesNotStopCycle(t *testing.T) {
	o := newTestOrchestrator(t, calmScorer(&stubCorrelation{}))
	var delivered int32
	o.On(EventIntelligenceUpdate, func(context.Context, Event) error { panic("subscriber bug") })
	o.On(EventIntelligenceUpdate, func(context.Context, Event) error { return errors.New("nope") })
	o.On(EventIntelligenceUpdate, func(context.Context, Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if atomic.LoadInt32(&delivered) != 1 || o.State() != StateRunning {
		t.Fatalf("delivered=%d state=%s", delivered, o.State())
	}
}

func TestHealthClassification(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    models.Health
	}{
		{0, models.HealthHealthy},
		{time.Second, models.HealthHealthy},
		{1500 * time.Millisecond, models.HealthDegraded},
		{2 * time.Second, models.HealthDegraded},
		{2001 * time.Millisecond, models.HealthCritical},
	}
	for _, c := range cases {
		if got := classifyHealth(c.elapsed, time.Second); got != c.want {
			t.Errorf("classifyHealth(%s) = %s, want %s", c.elapsed, got, c.want)
		}
	}
}

func TestCycleHistoryIsBounded(t *testing.T) {
	o := newTestOrchestrator(t, calmScorer(&stubCorrelation{}))
	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < MaxCycleHistory+20; i++ {
		if err := o.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if n := len(o.CycleHistory()); n != MaxCycleHistory {
		t.Fatalf("history = %d, want %d", n, MaxCycleHistory)
	}
	s := o.Status()
	if s.Cycles != int64(MaxCycleHistory+21) || s.AverageCycleTimeMs != 10 {
		t.Fatalf("status %+v", s)
	}
}

func TestTickerDrivesCycles(t *testing.T) {
	corr := &stubCorrelation{}
	o := NewOrchestrator(calmScorer(corr), nil, nil, WithPollInterval(5*time.Millisecond))
	defer o.Dispose()

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&corr.calls) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("ticker produced %d reads", atomic.LoadInt32(&corr.calls))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := o.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	// let an in-flight tick drain
	time.Sleep(20 * time.Millisecond)
	paused := atomic.LoadInt32(&corr.calls)
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&corr.calls); n != paused {
		t.Fatalf("reads continued while paused: %d -> %d", paused, n)
	}
}

func TestRuntimeSetters(t *testing.T) {
	o := newTestOrchestrator(t, calmScorer(&stubCorrelation{}))
	if err := o.SetPollInterval(0); err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
	if err := o.SetHighRiskThreshold(101); err == nil {
		t.Fatalf("expected error for threshold above 100")
	}
	if err := o.SetPerformanceThreshold(-time.Second); err == nil {
		t.Fatalf("expected error for negative threshold")
	}

	cfg := config.Default().Orchestrator
	cfg.PollInterval = 250 * time.Millisecond
	cfg.HighRiskThreshold = 60
	if err := o.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	s := o.Status()
	if s.PollIntervalMs != 250 || s.HighRiskThreshold != 60 || s.PerformanceThresholdMs != cfg.PerformanceThreshold.Milliseconds() {
		t.Fatalf("status %+v", s)
	}

	cfg.HighRiskThreshold = -1
	if err := o.ApplyConfig(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSummarizeCorrelation(t *testing.T) {
	g := models.CorrelationGraph{
		Pairs: []models.CorrelationPair{
			{Coefficient: 0.9}, {Coefficient: -0.75}, {Coefficient: 0.3},
		},
		StrongLinks: 1,
	}
	s := summarizeCorrelation(g)
	if s.PairCount != 3 || s.DestabilizingLinks != 2 || s.StrongLinks != 1 {
		t.Fatalf("summary %+v", s)
	}
	g.StrongLinks = 5
	if got := summarizeCorrelation(g).DestabilizingLinks; got != 5 {
		t.Fatalf("destabilizing = %d, want 5", got)
	}
}

// gatedCorrelation blocks one GetGraph call once armed, until release.
type gatedCorrelation struct {
	mu      sync.Mutex
	calls   int32
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedCorrelation) arm() (entered, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{})
	return g.entered, g.gate
}

func (g *gatedCorrelation) GetGraph(context.Context) (models.CorrelationGraph, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.gate, g.entered = nil, nil
	g.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	return models.CorrelationGraph{}, nil
}

func TestResumeWaitsForCycleStartedBeforePause(t *testing.T) {
	corr := &gatedCorrelation{}
	o := newTestOrchestrator(t, risk.NewScorer(corr, stubRootCause{nodes: 2}, stubForecast{shift: -2}))
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := o.Payload()

	entered, release := corr.arm()
	go func() { _ = o.RunOnce(ctx) }()
	<-entered

	if err := o.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	resumed := make(chan error, 1)
	go func() { resumed <- o.Resume(ctx) }()

	select {
	case err := <-resumed:
		t.Fatalf("Resume returned %v while the earlier cycle was still running", err)
	case <-time.After(30 * time.Millisecond):
	}
	close(release)

	select {
	case err := <-resumed:
		if err != nil {
			t.Fatalf("Resume: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Resume did not return")
	}
	if n := atomic.LoadInt32(&corr.calls); n != 3 {
		t.Fatalf("reads = %d, want 3", n)
	}
	if p := o.Payload(); p == nil || p.ID == first.ID {
		t.Fatalf("Resume did not publish a fresh payload")
	}
	if o.State() != StateRunning {
		t.Fatalf("state = %s", o.State())
	}
}

func TestDisposeFromTickerHandler(t *testing.T) {
	o := NewOrchestrator(calmScorer(&stubCorrelation{}), nil, nil, WithPollInterval(5*time.Millisecond))
	var updates int32
	disposed := make(chan struct{})
	o.On(EventIntelligenceUpdate, func(context.Context, Event) error {
		if atomic.AddInt32(&updates, 1) == 2 {
			o.Dispose()
			close(disposed)
		}
		return nil
	})

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-disposed:
	case <-time.After(2 * time.Second):
		t.Fatalf("Dispose from a ticker handler did not return")
	}
	if o.State() != StateIdle {
		t.Fatalf("state = %s, want IDLE", o.State())
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrOrchestratorDisposed) {
		t.Fatalf("Start after Dispose = %v", err)
	}
}
