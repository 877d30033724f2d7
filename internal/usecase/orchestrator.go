package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/services/risk"
	"RiskPulse/pkg/config"
	"RiskPulse/pkg/logger"
)

type OrchestratorState string

const (
	StateIdle    OrchestratorState = "IDLE"
	StateRunning OrchestratorState = "RUNNING"
	StatePaused  OrchestratorState = "PAUSED"
	StateError   OrchestratorState = "ERROR"
)

const (
	DefaultPollInterval         = 5 * time.Second
	DefaultPerformanceThreshold = time.Second
	DefaultHighRiskThreshold    = 75.0

	// MaxCycleHistory bounds the cycle-time history.
	MaxCycleHistory = 100
	// CascadeLinkLimit is exceeded when a cascade warning fires.
	CascadeLinkLimit = 2
	// StrongCorrelation is the |coefficient| at which a link counts as destabilizing.
	StrongCorrelation = 0.7
)

var (
	ErrInvalidTransition    = errors.New("invalid orchestrator state transition")
	ErrOrchestratorDisposed = errors.New("orchestrator disposed")
)

// OrchestratorStatus is a point-in-time view of the scheduler.
type OrchestratorStatus struct {
	State                  OrchestratorState `json:"state"`
	Cycles                 int64             `json:"cycles"`
	LastError              string            `json:"last_error,omitempty"`
	PollIntervalMs         int64             `json:"poll_interval_ms"`
	PerformanceThresholdMs int64             `json:"performance_threshold_ms"`
	HighRiskThreshold      float64           `json:"high_risk_threshold"`
	AverageCycleTimeMs     float64           `json:"average_cycle_time_ms"`
	HistoryLen             int               `json:"history_len"`
}

// Orchestrator periodically scores risk from the analytics collaborators,
// publishes one payload per cycle and fans out typed events. A failing
// cycle stops it in the ERROR state; only Stop leaves ERROR.
type Orchestrator struct {
	scorer  *risk.Scorer
	bus     *EventBus
	log     *logger.Logger
	metrics domrepo.Metrics
	now     func() time.Time

	mu            sync.Mutex
	state         OrchestratorState
	pollInterval  time.Duration
	perfThreshold time.Duration
	highRisk      float64
	payload       *models.IntelligencePayload
	history       []float64
	cycles        int64
	lastErr       error
	generation    uint64
	inFlight      bool
	cycleDone     chan struct{}
	loopEmits     int
	cancelLoop    context.CancelFunc
	loopDone      chan struct{}
	disposed      bool
}

type OrchestratorOption func(*Orchestrator)

func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func WithPerformanceThreshold(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.perfThreshold = d
		}
	}
}

func WithHighRiskThreshold(v float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if v >= 0 && v <= 100 {
			o.highRisk = v
		}
	}
}

func WithOrchestratorMetrics(m domrepo.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConfig applies the runtime configuration section.
func WithConfig(c config.OrchestratorConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		WithPollInterval(c.PollInterval)(o)
		WithPerformanceThreshold(c.PerformanceThreshold)(o)
		WithHighRiskThreshold(c.HighRiskThreshold)(o)
	}
}

func NewOrchestrator(scorer *risk.Scorer, bus *EventBus, log *logger.Logger, opts ...OrchestratorOption) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	if bus == nil {
		bus = NewEventBus(log)
	}
	o := &Orchestrator{
		scorer:        scorer,
		bus:           bus,
		log:           log,
		now:           time.Now,
		state:         StateIdle,
		pollInterval:  DefaultPollInterval,
		perfThreshold: DefaultPerformanceThreshold,
		highRisk:      DefaultHighRiskThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events exposes the bus the orchestrator emits on.
func (o *Orchestrator) Events() *EventBus { return o.bus }

// On subscribes fn to one event type.
func (o *Orchestrator) On(t EventType, fn Handler) *Subscription {
	return o.bus.Subscribe(t, fn)
}

// Start moves IDLE or PAUSED to RUNNING, runs one cycle synchronously and
// then schedules the ticker. The first cycle's error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return ErrOrchestratorDisposed
	}
	if o.state != StateIdle && o.state != StatePaused {
		st := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st)
	}
	o.state = StateRunning
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	o.log.Info("orchestrator started", logger.Duration("poll_interval_ms", o.PollInterval()))

	if err := o.firstCycle(ctx, gen); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning && o.generation == gen && o.cancelLoop == nil {
		o.startLoopLocked(gen)
	}
	return nil
}

// Resume is Start restricted to PAUSED.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	st := o.state
	disposed := o.disposed
	o.mu.Unlock()
	if disposed {
		return ErrOrchestratorDisposed
	}
	if st != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, st)
	}
	return o.Start(ctx)
}

// Pause cancels the ticker and keeps the last payload.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return ErrOrchestratorDisposed
	}
	if o.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, o.state)
	}
	o.state = StatePaused
	o.generation++
	o.stopLoopLocked()
	o.log.Info("orchestrator paused")
	return nil
}

// Stop resets to IDLE from any state, discarding payload and history.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return ErrOrchestratorDisposed
	}
	o.resetLocked(StateIdle)
	o.lastErr = nil
	o.log.Info("orchestrator stopped")
	return nil
}

// Dispose stops the orchestrator for good and waits for its ticker to exit.
// While the ticker is delivering events it does not wait, so handlers may
// call Dispose.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	done := o.loopDone
	if o.loopEmits > 0 {
		done = nil
	}
	o.resetLocked(StateIdle)
	o.disposed = true
	o.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (o *Orchestrator) resetLocked(st OrchestratorState) {
	o.state = st
	o.generation++
	o.stopLoopLocked()
	o.payload = nil
	o.history = nil
	o.cycles = 0
}

func (o *Orchestrator) startLoopLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancelLoop = cancel
	o.loopDone = done
	go o.loop(ctx, gen, o.pollInterval, done)
}

func (o *Orchestrator) stopLoopLocked() {
	if o.cancelLoop != nil {
		o.cancelLoop()
		o.cancelLoop = nil
	}
}

func (o *Orchestrator) loop(ctx context.Context, gen uint64, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = o.runCycle(ctx, gen, true)
		}
	}
}

// RunOnce runs a cycle outside the ticker. It is skipped unless RUNNING.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning {
		st := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cycle while %s", ErrInvalidTransition, st)
	}
	gen := o.generation
	o.mu.Unlock()
	return o.runCycle(ctx, gen, false)
}

// firstCycle waits for a cycle left over from before a Pause or Stop to
// finish, then runs the cycle Start owes its caller.
func (o *Orchestrator) firstCycle(ctx context.Context, gen uint64) error {
	for {
		o.mu.Lock()
		if !o.inFlight {
			o.mu.Unlock()
			return o.runCycle(ctx, gen, false)
		}
		wait := o.cycleDone
		o.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return o.fail(gen, fmt.Errorf("wait for previous cycle: %w", ctx.Err()))
		}
	}
}

func (o *Orchestrator) finishCycleLocked() {
	if !o.inFlight {
		return
	}
	o.inFlight = false
	close(o.cycleDone)
	o.cycleDone = nil
}

// runCycle performs one cycle for generation gen. A cycle is skipped while
// another is in flight, and its result is dropped if the generation moved on.
// Events are emitted after the cycle is marked finished.
func (o *Orchestrator) runCycle(ctx context.Context, gen uint64, fromLoop bool) (err error) {
	o.mu.Lock()
	if o.inFlight || o.generation != gen || o.state != StateRunning {
		o.mu.Unlock()
		return nil
	}
	o.inFlight = true
	o.cycleDone = make(chan struct{})
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		o.mu.Lock()
		o.finishCycleLocked()
		o.mu.Unlock()
		if err != nil {
			err = o.fail(gen, err)
		}
	}()

	start := o.now()
	in, err := o.scorer.Read(ctx)
	if err != nil {
		return fmt.Errorf("read collaborators: %w", err)
	}
	score := o.scorer.Score(in)
	elapsed := o.now().Sub(start)

	p := &models.IntelligencePayload{
		ID:          uuid.NewString(),
		Timestamp:   start,
		Risk:        score,
		Correlation: summarizeCorrelation(in.Graph),
		RootCause: models.RootCauseView{
			NodeCount: in.RootCause.NodeCount,
			Weight:    risk.RootCauseWeight(in.RootCause.NodeCount),
		},
		Forecast: in.Forecast,
	}

	o.mu.Lock()
	if o.generation != gen || o.state != StateRunning {
		o.finishCycleLocked()
		o.mu.Unlock()
		o.log.Debug("discarding stale cycle")
		return nil
	}
	cycleMs := float64(elapsed) / float64(time.Millisecond)
	health := classifyHealth(elapsed, o.perfThreshold)
	o.history = append(o.history, cycleMs)
	if len(o.history) > MaxCycleHistory {
		o.history = o.history[len(o.history)-MaxCycleHistory:]
	}
	o.cycles++
	p.Performance = models.PerformanceBlock{
		CycleTimeMs:        cycleMs,
		AverageCycleTimeMs: mean(o.history),
		LastUpdate:         o.now(),
		Health:             health,
		Cycles:             o.cycles,
	}
	o.payload = p
	highRisk := o.highRisk
	thresholdMs := float64(o.perfThreshold) / float64(time.Millisecond)
	o.finishCycleLocked()
	if fromLoop {
		o.loopEmits++
	}
	o.mu.Unlock()
	if fromLoop {
		defer func() {
			o.mu.Lock()
			o.loopEmits--
			o.mu.Unlock()
		}()
	}

	if o.metrics != nil {
		o.metrics.RecordCycle(elapsed.Seconds(), health)
		o.metrics.RecordRiskScore(score.Score)
	}
	o.log.Debug("cycle complete",
		logger.Float64("score", score.Score),
		logger.String("class", string(score.Classification)),
		logger.Float64("cycle_ms", cycleMs),
		logger.String("health", string(health)),
	)

	o.emit(ctx, p, highRisk, thresholdMs)
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, p *models.IntelligencePayload, highRisk, thresholdMs float64) {
	ts := p.Performance.LastUpdate
	o.bus.Emit(ctx, Event{Type: EventIntelligenceUpdate, Timestamp: ts, Payload: p})

	if p.Risk.Score >= highRisk {
		o.bus.Emit(ctx, Event{Type: EventHighRiskDetected, Timestamp: ts, Payload: p, HighRisk: &HighRiskDetail{
			Score:          p.Risk.Score,
			Threshold:      highRisk,
			Classification: p.Risk.Classification,
		}})
	}
	if p.Correlation.DestabilizingLinks > CascadeLinkLimit {
		o.bus.Emit(ctx, Event{Type: EventCascadeWarning, Timestamp: ts, Payload: p, Cascade: &CascadeDetail{
			DestabilizingLinks: p.Correlation.DestabilizingLinks,
			CascadesDetected:   p.Correlation.CascadesDetected,
		}})
	}
	if p.Performance.Health != models.HealthHealthy {
		o.bus.Emit(ctx, Event{Type: EventPerformanceDegraded, Timestamp: ts, Payload: p, Performance: &PerformanceDetail{
			CycleTimeMs: p.Performance.CycleTimeMs,
			ThresholdMs: thresholdMs,
			Health:      p.Performance.Health,
		}})
	}
}

// fail halts the ticker, clears payload and history and enters ERROR.
// Failures from a stale generation are ignored.
func (o *Orchestrator) fail(gen uint64, cause error) error {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return nil
	}
	o.resetLocked(StateError)
	o.lastErr = cause
	o.mu.Unlock()

	o.log.Error("orchestrator cycle failed", logger.Error(cause))
	if o.metrics != nil {
		o.metrics.RecordError("orchestrator_cycle")
	}
	return cause
}

func (o *Orchestrator) State() OrchestratorState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Payload returns the current payload, or nil before the first cycle and after Stop.
func (o *Orchestrator) Payload() *models.IntelligencePayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.payload == nil {
		return nil
	}
	cp := *o.payload
	return &cp
}

// CycleHistory returns the recorded cycle times in milliseconds, oldest first.
func (o *Orchestrator) CycleHistory() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float64(nil), o.history...)
}

func (o *Orchestrator) Status() OrchestratorStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := OrchestratorStatus{
		State:                  o.state,
		Cycles:                 o.cycles,
		PollIntervalMs:         o.pollInterval.Milliseconds(),
		PerformanceThresholdMs: o.perfThreshold.Milliseconds(),
		HighRiskThreshold:      o.highRisk,
		AverageCycleTimeMs:     mean(o.history),
		HistoryLen:             len(o.history),
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}
	return s
}

func (o *Orchestrator) PollInterval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pollInterval
}

// SetPollInterval applies immediately; a running ticker is restarted.
func (o *Orchestrator) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", d)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pollInterval = d
	if o.state == StateRunning && o.cancelLoop != nil {
		o.stopLoopLocked()
		o.startLoopLocked(o.generation)
	}
	return nil
}

func (o *Orchestrator) SetPerformanceThreshold(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("performance threshold must be positive, got %s", d)
	}
	o.mu.Lock()
	o.perfThreshold = d
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) SetHighRiskThreshold(v float64) error {
	if v < 0 || v > 100 || math.IsNaN(v) {
		return fmt.Errorf("high risk threshold must be within [0,100], got %v", v)
	}
	o.mu.Lock()
	o.highRisk = v
	o.mu.Unlock()
	return nil
}

// ApplyConfig validates and applies the whole runtime surface.
func (o *Orchestrator) ApplyConfig(c config.OrchestratorConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := o.SetPerformanceThreshold(c.PerformanceThreshold); err != nil {
		return err
	}
	if err := o.SetHighRiskThreshold(c.HighRiskThreshold); err != nil {
		return err
	}
	if o.PollInterval() != c.PollInterval {
		return o.SetPollInterval(c.PollInterval)
	}
	return nil
}

func classifyHealth(elapsed, threshold time.Duration) models.Health {
	switch {
	case elapsed <= threshold:
		return models.HealthHealthy
	case elapsed <= 2*threshold:
		return models.HealthDegraded
	default:
		return models.HealthCritical
	}
}

func summarizeCorrelation(g models.CorrelationGraph) models.CorrelationSummary {
	strong := 0
	for _, p := range g.Pairs {
		if math.Abs(p.Coefficient) >= StrongCorrelation {
			strong++
		}
	}
	return models.CorrelationSummary{
		PairCount:          len(g.Pairs),
		Intensity:          risk.CorrelationIntensity(g.Pairs),
		StrongLinks:        g.StrongLinks,
		CascadesDetected:   g.CascadesDetected,
		DestabilizingLinks: max(strong, g.StrongLinks),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
