//go:build wireinject
// +build wireinject

package di

import (
	"RiskPulse/pkg/config"
	"RiskPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideSnapshotStore,
		ProvideHistoryStore,
		ProvidePayloadPublisher,

		// Engines
		ProvideAnalytics,
		ProvideRiskScorer,
		ProvideFusionBuilder,
		ProvideReactorEngine,

		// Use cases
		ProvideEventBus,
		ProvideOrchestrator,
		ProvidePayloadSink,
		ProvideDecisionService,
		ProvideWorkingSet,
		ProvideSignalCollector,
		ProvideKafkaConsumer,
		ProvideRetention,

		// Transport
		ProvideLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
