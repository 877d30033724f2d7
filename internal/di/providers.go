package di

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/repository"
	"RiskPulse/internal/handler/api"
	mid "RiskPulse/internal/middleware"
	internalrepo "RiskPulse/internal/repository"
	icache "RiskPulse/internal/service/cache"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/services/cluster"
	"RiskPulse/internal/services/features"
	"RiskPulse/internal/services/fusion"
	"RiskPulse/internal/services/reactor"
	"RiskPulse/internal/services/risk"
	"RiskPulse/internal/usecase"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	"RiskPulse/pkg/server"
)

const schemaInitTimeout = 10 * time.Second

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer when the payload sink or log
// collection needs one, and attaches the log collector to it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Sinks.Kafka && !cfg.Log.Collect {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerOptionsFromConfig(cfg.Kafka)...)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Log.Collect {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.FlushInterval,
			Topic:        cfg.Kafka.LogsTopic,
			Publisher:    producer,
		})
	}
	return producer, nil
}

// ProvideRedisCache returns nil when the Redis sink is disabled.
func ProvideRedisCache(cfg *config.Config) (*icache.RedisCache, error) {
	if !cfg.Sinks.Redis {
		return nil, nil
	}
	rc := icache.NewRedisCache(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return rc, nil
}

// ProvideSnapshotStore keeps the latest payload in Redis when available and
// in process memory otherwise.
func ProvideSnapshotStore(cfg *config.Config, rc *icache.RedisCache) *internalrepo.SnapshotStore {
	if rc != nil {
		return internalrepo.NewSnapshotStore(rc, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
	}
	return internalrepo.NewSnapshotStore(icache.NewTTLCache(), cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
}

// ProvideClickHouseClient returns nil when the ClickHouse sink is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Sinks.ClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(pkgch.FromConfig(cfg.ClickHouse)...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHistoryStore initializes the history schema. The returned interface
// is nil when ClickHouse is disabled.
func ProvideHistoryStore(ch *pkgch.Client, l *applogger.Logger) (repository.HistoryStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHHistoryStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePayloadPublisher returns nil when the Kafka sink is disabled.
func ProvidePayloadPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.PayloadPublisher {
	if !cfg.Sinks.Kafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPayloadPublisher(producer, cfg.Kafka.PayloadTopic, cfg.Kafka.EventsTopic)
}

func ProvidePayloadSink(
	l *applogger.Logger,
	snapshots *internalrepo.SnapshotStore,
	pub repository.PayloadPublisher,
	history repository.HistoryStore,
	m repository.Metrics,
) *usecase.PayloadSink {
	return usecase.NewPayloadSink(l.With(applogger.String("component", "payload.sink")),
		usecase.WithSnapshotCache(snapshots),
		usecase.WithPublisher(pub),
		usecase.WithHistory(history),
		usecase.WithSinkMetrics(m),
	)
}

// ProvideAnalytics selects the collaborator implementations.
func ProvideAnalytics(cfg *config.Config) (analytics.Providers, error) {
	return analytics.NewProviders(cfg.Analytics)
}

func ProvideRiskScorer(p analytics.Providers, cfg *config.Config) *risk.Scorer {
	return risk.NewScorer(p.Correlation, p.RootCause, p.Forecast,
		risk.WithReadTimeout(cfg.Orchestrator.ReadTimeout),
	)
}

func ProvideEventBus(l *applogger.Logger, m repository.Metrics) *usecase.EventBus {
	return usecase.NewEventBus(l.With(applogger.String("component", "event.bus")), usecase.WithBusMetrics(m))
}

func ProvideOrchestrator(scorer *risk.Scorer, bus *usecase.EventBus, l *applogger.Logger, m repository.Metrics, cfg *config.Config) *usecase.Orchestrator {
	return usecase.NewOrchestrator(scorer, bus, l.With(applogger.String("component", "orchestrator")),
		usecase.WithConfig(cfg.Orchestrator),
		usecase.WithOrchestratorMetrics(m),
	)
}

func ProvideFusionBuilder() *fusion.Builder {
	return fusion.NewBuilder()
}

func ProvideReactorEngine() *reactor.Engine {
	return reactor.NewEngine()
}

func ProvideDecisionService(
	builder *fusion.Builder,
	engine *reactor.Engine,
	history repository.HistoryStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DecisionService {
	return usecase.NewDecisionService(builder, engine, history, m, l.With(applogger.String("component", "decision")))
}

func ProvideWorkingSet(cfg *config.Config) *usecase.WorkingSet {
	return usecase.NewWorkingSet(cfg.Ingest.WorkingSetSize)
}

// ProvideSignalCollector builds the ingest pipeline in front of the working set.
func ProvideSignalCollector(ws *usecase.WorkingSet, m repository.Metrics, cfg *config.Config) *usecase.SignalCollector {
	pipe := mid.NewSignalPipeline(ws, m,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
	)
	return usecase.NewSignalCollector(pipe, ws, cluster.NewEngine(features.NewEncoder()), m)
}

// ProvideKafkaConsumer returns nil unless signal consumption is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, collector *usecase.SignalCollector, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consume {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l.With(applogger.String("component", "kafka.consumer")),
		pkgkafka.ConsumerOptionsFromConfig(cfg.Kafka)...)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, collector, m, l))
	consumer.SetHook(pkgkafka.NewHookChain(
		pkgkafka.RejectEmpty(),
		pkgkafka.LogSlow(l, cfg.Orchestrator.PerformanceThreshold),
	))
	return consumer, nil
}

// ProvideRetention returns nil when retention is off or there is no history.
func ProvideRetention(history repository.HistoryStore, cfg *config.Config, l *applogger.Logger) *usecase.HistoryRetention {
	if !cfg.Retention.Enabled || history == nil {
		return nil
	}
	return usecase.NewHistoryRetention(history, cfg.Retention, l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit)
}

// ProvideHTTPServer registers every API handler on one echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	orch *usecase.Orchestrator,
	snapshots *internalrepo.SnapshotStore,
	history repository.HistoryStore,
	collector *usecase.SignalCollector,
	builder *fusion.Builder,
	engine *reactor.Engine,
	decisions *usecase.DecisionService,
	limiter *ratelimit.Limiter,
) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewIntelligenceHandler(l, orch, snapshots, history),
		api.NewOrchestratorHandler(l, orch),
		api.NewEngineHandler(l, collector, builder, engine, decisions, limiter),
		api.NewEventsHandler(l, orch.Events()),
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithSlowThreshold(cfg.Orchestrator.PerformanceThreshold),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	orch *usecase.Orchestrator,
	collector *usecase.SignalCollector,
	sink *usecase.PayloadSink,
	limiter *ratelimit.Limiter,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	retention *usecase.HistoryRetention,
	ch *pkgch.Client,
	rc *icache.RedisCache,
) *server.App {
	c := server.Components{
		Logger:       l,
		Orchestrator: orch,
		Collector:    collector,
		Sink:         sink,
		Limiter:      limiter,
		HTTPServer:   srv,
		Consumer:     consumer,
		Producer:     producer,
		Retention:    retention,
		CHClient:     ch,
	}
	if rc != nil {
		c.Snapshots = rc
	}
	return server.New(cfg, c)
}
