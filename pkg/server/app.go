package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/usecase"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
)

// limiterSweepInterval is how often idle rate limit buckets are dropped.
const limiterSweepInterval = time.Minute

// Closer is anything the app must release on shutdown.
type Closer interface {
	Close() error
}

// Components is everything the app runs. Optional parts are nil when the
// matching sink or feature is disabled in config.
type Components struct {
	Logger       *applogger.Logger
	Orchestrator *usecase.Orchestrator
	Collector    *usecase.SignalCollector
	Sink         *usecase.PayloadSink
	Limiter      *ratelimit.Limiter
	HTTPServer   *xhttp.Server

	Consumer  *pkgkafka.Consumer
	Producer  *pkgkafka.Producer
	Retention *usecase.HistoryRetention
	CHClient  *pkgch.Client
	Snapshots Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	configPath string
	c          Components
	log        *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, c Components) *App {
	log := c.Logger
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{cfg: cfg, c: c, log: log}
}

// SetConfigPath enables hot reload of the orchestrator section from path.
func (a *App) SetConfigPath(path string) { a.configPath = path }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.c.Collector.Start(gctx)
	if a.c.Sink != nil {
		a.c.Sink.Attach(a.c.Orchestrator.Events())
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Start(gctx); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}

	if a.c.Retention != nil {
		if err := a.c.Retention.Start(gctx); err != nil {
			return fmt.Errorf("start retention: %w", err)
		}
	}

	if a.cfg.Orchestrator.AutoStart {
		// A failing first cycle leaves the orchestrator in ERROR; the API
		// can restart it, so this is not fatal for the process.
		if err := a.c.Orchestrator.Start(gctx); err != nil {
			a.log.Error("orchestrator auto start failed", applogger.Error(err))
		}
	}

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer w.Close()
			return w.Watch(gctx, a.c.Orchestrator.ApplyConfig)
		})
	}

	g.Go(func() error {
		t := time.NewTicker(limiterSweepInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n := a.c.Limiter.Sweep(limiterSweepInterval); n > 0 {
					a.log.Debug("rate limit buckets swept", applogger.Int("removed", n))
				}
			}
		}
	})

	if err := a.c.HTTPServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-a.c.HTTPServer.Errors():
			return err
		}
	})

	a.log.Info("riskpulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("analytics", a.cfg.Analytics.Mode),
		applogger.Bool("kafka_consume", a.c.Consumer != nil),
	)

	<-gctx.Done()
	a.log.Info("shutdown signal received")

	shutdownErr := a.shutdown()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return shutdownErr
}

// shutdown stops producers of work first, then the sinks they feed.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.c.HTTPServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.c.Orchestrator.Dispose()

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.c.Collector.Shutdown()

	if a.c.Retention != nil {
		a.c.Retention.Stop()
	}
	if a.c.Sink != nil {
		a.c.Sink.Detach()
	}

	a.log.RemoveCollector()
	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.c.CHClient != nil {
		if err := a.c.CHClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.c.Snapshots != nil {
		if err := a.c.Snapshots.Close(); err != nil {
			a.log.Warn("snapshot cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
