package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// ErrThrottled is returned for a record whose source exceeded the rate cap.
var ErrThrottled = errors.New("signal source throttled")

// Proc is the downstream the pipeline forwards accepted records to.
type Proc interface {
	Process(ctx context.Context, r *models.SignalRecord) error
}

// SignalPipeline sits between the ingest transports and the working set.
// It validates records, throttles each source, and buffers records the
// downstream rejected for a background retry.
type SignalPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	validate *validator.Validate
	now      func() time.Time

	maxRPS  int
	bufSize int
	bufCh   chan *models.SignalRecord
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	mu       sync.Mutex
	lastSeen map[string]time.Time

	transform func(*models.SignalRecord) *models.SignalRecord
}

type PipelineOption func(*SignalPipeline)

// WithMaxRPS caps accepted records per second per source. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used while the downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform rewrites records before throttling; the result is validated again.
func WithTransform(fn func(*models.SignalRecord) *models.SignalRecord) PipelineOption {
	return func(p *SignalPipeline) { p.transform = fn }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *SignalPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func NewSignalPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		proc:     proc,
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
		maxRPS:   200,
		bufSize:  1000,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SignalRecord, p.bufSize)
	return p
}

// Start launches the retry loop for buffered records.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	p.stopCh, p.doneCh = stopCh, doneCh
	p.mu.Unlock()

	go func() {
		defer close(doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case r := <-p.bufCh:
				if err := p.proc.Process(ctx, r); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.recordError("pipeline_retry")
					select {
					case <-time.After(backoff):
					case <-stopCh:
						return
					case <-ctx.Done():
						return
					}
					select {
					case p.bufCh <- r:
					default:
						p.recordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop ends the retry loop and waits for it. Buffered records are kept.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()
	close(stopCh)
	<-doneCh
}

// Buffered reports records waiting for retry.
func (p *SignalPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles and forwards r. A throttled record yields
// ErrThrottled; a downstream failure buffers r and is returned wrapped.
func (p *SignalPipeline) Process(ctx context.Context, r *models.SignalRecord) error {
	return p.process(ctx, r, p.now(), nil)
}

// process handles one record. When admitted is non-nil the throttle decision
// is made once per source and reused for the rest of the batch.
func (p *SignalPipeline) process(ctx context.Context, r *models.SignalRecord, start time.Time, admitted map[string]bool) error {
	if err := p.check(r); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		r = p.transform(r)
		if err := p.check(r); err != nil {
			p.recordError("pipeline_transform_invalid")
			return err
		}
	}
	if r.Timestamp.IsZero() {
		cp := *r
		cp.Timestamp = start
		r = &cp
	}
	if !p.admit(r.Source, start, admitted) {
		p.recordError("pipeline_throttle")
		return fmt.Errorf("%s: %w", r.Source, ErrThrottled)
	}

	if err := p.proc.Process(ctx, r); err != nil {
		p.recordError("pipeline_process")
		select {
		case p.bufCh <- r:
			if p.metrics != nil {
				p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
			}
		default:
			p.recordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	}
	return nil
}

// ProcessBatch processes each record and returns how many went through
// without error, along with the first error. A batch counts as one arrival
// per source, so records of the same batch never throttle each other.
func (p *SignalPipeline) ProcessBatch(ctx context.Context, records []models.SignalRecord) (int, error) {
	var first error
	accepted := 0
	start := p.now()
	admitted := make(map[string]bool)
	for i := range records {
		if err := p.process(ctx, &records[i], start, admitted); err != nil {
			if first == nil {
				first = fmt.Errorf("record %d: %w", i, err)
			}
			continue
		}
		accepted++
	}
	return accepted, first
}

func (p *SignalPipeline) check(r *models.SignalRecord) error {
	if r == nil {
		return fmt.Errorf("signal record nil")
	}
	if err := p.validate.Struct(r); err != nil {
		return fmt.Errorf("invalid signal record: %w", err)
	}
	return nil
}

func (p *SignalPipeline) admit(source string, now time.Time, admitted map[string]bool) bool {
	if admitted == nil {
		return p.allow(source, now)
	}
	ok, seen := admitted[source]
	if !seen {
		ok = p.allow(source, now)
		admitted[source] = ok
	}
	return ok
}

func (p *SignalPipeline) allow(source string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[source]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[source] = now
	return true
}

func (p *SignalPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
