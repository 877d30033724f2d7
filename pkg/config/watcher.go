package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"RiskPulse/pkg/logger"
)

// ReloadFunc receives the re-validated orchestrator section after a file change.
type ReloadFunc func(OrchestratorConfig) error

// Watcher re-reads the config file on change and hands the runtime
// surface to a callback. Bursts of events are debounced.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *logger.Logger
	fs       *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func NewWatcher(path string, log *logger.Logger, opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{path: filepath.Clean(path), debounce: 200 * time.Millisecond, log: log, fs: fs}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Watch blocks until ctx is cancelled. The parent directory is watched so
// that editors replacing the file atomically are still observed.
func (w *Watcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.log.Info("config watcher started", logger.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(onReload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Warn("config watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) schedule(onReload ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.reload(onReload) })
}

func (w *Watcher) reload(onReload ReloadFunc) {
	c, err := Load(w.path)
	if err != nil {
		w.log.Error("config reload failed", logger.String("path", w.path), logger.Error(err))
		return
	}
	if err := onReload(c.Orchestrator); err != nil {
		w.log.Error("config reload rejected", logger.Error(err))
		return
	}
	w.log.Info("config reloaded",
		logger.Duration("poll_interval_ms", c.Orchestrator.PollInterval),
		logger.Duration("performance_threshold_ms", c.Orchestrator.PerformanceThreshold),
		logger.Float64("high_risk_threshold", c.Orchestrator.HighRiskThreshold),
	)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) Close() error {
	w.stopTimer()
	return w.fs.Close()
}
