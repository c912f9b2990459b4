//go:build wireinject
// +build wireinject

package di

import (
	"TrendPull/pkg/config"
	"TrendPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheService,

		// Repositories
		ProvideBarStorage,
		ProvideBarPublisher,
		ProvideEvaluationPublisher,
		ProvideBucketResolver,
		ProvideIntentSource,
		ProvideBarStream,

		// Use cases
		ProvideBarProcessor,
		ProvideBarCollector,
		ProvideRegimeStore,
		ProvideRegimeBuilder,
		ProvideRegimeRunner,
		ProvideEvaluator,
		ProvideKafkaBarsHandler,
		ProvideBarsUseCase,

		// Transport
		ProvideHTTPHandler,
		ProvideBackfillQueue,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
