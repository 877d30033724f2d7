package usecase

import (
	"context"
	"errors"
	"sync"

	"RiskPulse/internal/domain/models"
)

const DefaultWorkingSetSize = 500

// WorkingSet keeps the most recent signal records in arrival order.
// Once full, each Add overwrites the oldest record.
type WorkingSet struct {
	mu    sync.RWMutex
	buf   []models.SignalRecord
	next  int
	full  bool
	total int64
}

func NewWorkingSet(size int) *WorkingSet {
	if size <= 0 {
		size = DefaultWorkingSetSize
	}
	return &WorkingSet{buf: make([]models.SignalRecord, size)}
}

// Add appends records, evicting the oldest when the ring is full.
func (w *WorkingSet) Add(records ...models.SignalRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range records {
		w.buf[w.next] = r
		w.next = (w.next + 1) % len(w.buf)
		if w.next == 0 {
			w.full = true
		}
		w.total++
	}
}

// Process adds one record. It lets the working set sit behind the signal pipeline.
func (w *WorkingSet) Process(_ context.Context, r *models.SignalRecord) error {
	if r == nil {
		return errors.New("signal record is nil")
	}
	w.Add(*r)
	return nil
}

// Snapshot returns the held records, oldest first.
func (w *WorkingSet) Snapshot() []models.SignalRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.full {
		return append([]models.SignalRecord(nil), w.buf[:w.next]...)
	}
	out := make([]models.SignalRecord, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	return append(out, w.buf[:w.next]...)
}

func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.full {
		return len(w.buf)
	}
	return w.next
}

func (w *WorkingSet) Cap() int { return len(w.buf) }

// Total counts every record ever added, evicted or not.
func (w *WorkingSet) Total() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.total
}

func (w *WorkingSet) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.buf)
	w.next = 0
	w.full = false
}
