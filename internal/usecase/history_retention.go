package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/pkg/config"
	"RiskPulse/pkg/logger"
)

// HistoryRetention prunes the history store on a cron schedule.
type HistoryRetention struct {
	store    domrepo.HistoryStore
	schedule string
	maxAge   time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewHistoryRetention(store domrepo.HistoryStore, cfg config.RetentionConfig, log *logger.Logger) *HistoryRetention {
	if log == nil {
		log = logger.NewNop()
	}
	return &HistoryRetention{
		store:    store,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
		log:      log.With(logger.String("component", "history.retention")),
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Start validates the schedule and registers the prune job. An empty
// schedule leaves retention disabled. The job stops when ctx is done.
func (r *HistoryRetention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if r.schedule == "" {
		r.log.Info("retention schedule not configured, skipping")
		return nil
	}
	if r.maxAge <= 0 {
		return fmt.Errorf("retention max age must be positive, got %s", r.maxAge)
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.PruneOnce(ctx); err != nil {
			r.log.Error("scheduled history prune failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.log.Info("retention scheduler started",
		logger.String("schedule", r.schedule),
		logger.Duration("max_age_ms", r.maxAge),
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// PruneOnce removes history older than the configured max age.
func (r *HistoryRetention) PruneOnce(ctx context.Context) error {
	cutoff := r.now().Add(-r.maxAge)
	if err := r.store.Prune(ctx, cutoff); err != nil {
		return fmt.Errorf("prune history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	r.log.Debug("history pruned", logger.String("cutoff", cutoff.Format(time.RFC3339)))
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (r *HistoryRetention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.log.Info("retention scheduler stopped")
}

func (r *HistoryRetention) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun reports the next scheduled prune, or nil when not scheduled.
func (r *HistoryRetention) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
