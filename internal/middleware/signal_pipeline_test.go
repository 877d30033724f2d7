package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
)

type fakeProc struct {
	mu   sync.Mutex
	fail int
	got  []models.SignalRecord
}

func (f *fakeProc) Process(_ context.Context, r *models.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("downstream unavailable")
	}
	f.got = append(f.got, *r)
	return nil
}

func (f *fakeProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func TestPipelineValidates(t *testing.T) {
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil)
	cases := []*models.SignalRecord{
		nil,
		{Severity: 3},
		{Severity: 9, Source: "engine"},
		{Severity: -1, Source: "engine"},
	}
	for _, r := range cases {
		if err := p.Process(context.Background(), r); err == nil {
			t.Fatalf("expected validation error for %+v", r)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid records reached downstream")
	}
}

func TestPipelineStampsMissingTimestamp(t *testing.T) {
	clock := &fixedClock{t: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil, WithPipelineClock(clock.now))
	r := models.SignalRecord{Severity: 2, Source: "ui"}
	if err := p.Process(context.Background(), &r); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !proc.got[0].Timestamp.Equal(clock.t) {
		t.Fatalf("timestamp = %v", proc.got[0].Timestamp)
	}
	if !r.Timestamp.IsZero() {
		t.Fatalf("caller's record was mutated")
	}
}

func TestPipelineThrottlesPerSource(t *testing.T) {
	clock := &fixedClock{t: time.Unix(100, 0)}
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil, WithMaxRPS(10), WithPipelineClock(clock.now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := p.Process(ctx, &models.SignalRecord{Source: "engine"})
		if i > 0 && !errors.Is(err, ErrThrottled) {
			t.Fatalf("record %d: err = %v, want ErrThrottled", i, err)
		}
	}
	_ = p.Process(ctx, &models.SignalRecord{Source: "memory"})
	if n := proc.count(); n != 2 {
		t.Fatalf("forwarded %d, want one per source", n)
	}

	clock.t = clock.t.Add(100 * time.Millisecond)
	_ = p.Process(ctx, &models.SignalRecord{Source: "engine"})
	if n := proc.count(); n != 3 {
		t.Fatalf("forwarded %d after interval, want 3", n)
	}
}

func TestPipelineTransform(t *testing.T) {
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil, WithMaxRPS(0), WithTransform(func(r *models.SignalRecord) *models.SignalRecord {
		cp := *r
		cp.Source = strings.ToLower(cp.Source)
		return &cp
	}))
	if err := p.Process(context.Background(), &models.SignalRecord{Source: "ENGINE"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.got[0].Source != "engine" {
		t.Fatalf("source = %q", proc.got[0].Source)
	}

	blank := NewSignalPipeline(proc, nil, WithTransform(func(r *models.SignalRecord) *models.SignalRecord {
		return &models.SignalRecord{}
	}))
	if err := blank.Process(context.Background(), &models.SignalRecord{Source: "x"}); err == nil {
		t.Fatalf("expected error for invalid transform output")
	}
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &fakeProc{fail: 1}
	p := NewSignalPipeline(proc, nil, WithMaxRPS(0), WithBufferSize(4))

	err := p.Process(context.Background(), &models.SignalRecord{Source: "engine", Severity: 4})
	if err == nil || !strings.Contains(err.Error(), "pipeline downstream") {
		t.Fatalf("err = %v", err)
	}
	if p.Buffered() != 1 {
		t.Fatalf("buffered = %d, want 1", p.Buffered())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered record was not retried")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProcessBatch(t *testing.T) {
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil, WithMaxRPS(0))
	n, err := p.ProcessBatch(context.Background(), []models.SignalRecord{
		{Source: "a"}, {Severity: 7, Source: "b"}, {Source: "c"},
	})
	if n != 2 || err == nil || !strings.Contains(err.Error(), "record 1") {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestProcessBatchAdmitsSameSourceAtDefaultRate(t *testing.T) {
	clock := &fixedClock{t: time.Unix(100, 0)}
	proc := &fakeProc{}
	p := NewSignalPipeline(proc, nil, WithPipelineClock(clock.now))
	batch := []models.SignalRecord{
		{Source: "memory-a", Severity: 4, Category: models.CategoryMemory},
		{Source: "memory-a", Severity: 3, Category: models.CategoryMemory},
		{Source: "ui-b", Severity: 2, Category: models.CategoryEmotional},
	}
	n, err := p.ProcessBatch(context.Background(), batch)
	if n != 3 || err != nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if proc.count() != 3 {
		t.Fatalf("forwarded %d, want 3", proc.count())
	}

	n, err = p.ProcessBatch(context.Background(), batch[:2])
	if n != 0 || !errors.Is(err, ErrThrottled) {
		t.Fatalf("immediate second batch: n=%d err=%v", n, err)
	}
	if proc.count() != 3 {
		t.Fatalf("throttled records reached downstream")
	}
}

func TestPipelineRestart(t *testing.T) {
	p := NewSignalPipeline(&fakeProc{}, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.Start(ctx)
		p.Stop()
	}
}
