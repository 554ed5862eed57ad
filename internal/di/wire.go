//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TrendWatch/pkg/config"
	"TrendWatch/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application with
// a cleanup that releases every opened client.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideCache,
		ProvideLocker,

		// Repositories
		ProvideStateStore,
		ProvideJournal,
		ProvideDecisionPublisher,
		ProvideParams,
		ProvidePriceProvider,
		ProvideNotifier,

		// Use cases
		ProvideAcquirer,
		ProvideReconciler,
		ProvideCoordinator,

		// Delivery
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
