//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"vocarank/internal"
	"vocarank/internal/controllers"
	"vocarank/internal/providers"
	"vocarank/internal/ranking"
	"vocarank/internal/refresh"
	"vocarank/internal/services"
	"vocarank/internal/store"
	"vocarank/internal/structures"
)

var baseSet = wire.NewSet(
	providers.NewConfigProvider,
	providers.NewLogProvider,
	ProvideDatabase,
)

var refreshSet = wire.NewSet(
	providers.NewMetricsProvider,
	providers.NewZstdCompressor,
	providers.NewInstrumentedCacheProvider,
	store.NewEntityStore,
	store.NewViewsStore,
	refresh.NewProviders,
	refresh.NewRefresher,
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		baseSet,
		refreshSet,
		refresh.NewScheduler,
		ranking.NewEngine,
		services.NewRankingService,
		controllers.NewApiController,
		controllers.NewHealthController,
		controllers.NewRefreshController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

func InitRefreshJob(cfg *structures.CliFlags) (*internal.RefreshJob, error) {

	wire.Build(
		baseSet,
		refreshSet,
		internal.NewRefreshJob,
	)

	return nil, nil
}

func InitMigrateJob(cfg *structures.CliFlags) (*internal.MigrateJob, error) {

	wire.Build(
		baseSet,
		internal.NewMigrateJob,
	)

	return nil, nil
}
