package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
	"tripcore/internal/handler"
	"tripcore/internal/outbox"
	internalRedis "tripcore/internal/redis"
	"tripcore/internal/service"
)

// CancellationPolicy converts the pricing settings into the service policy.
func CancellationPolicy(cfg config.PricingConfig) service.CancellationPolicy {
	return service.CancellationPolicy{
		RequestedGrace: cfg.RequestedGrace,
		RequestedFee:   cfg.RequestedFee,
		AssignedGrace:  cfg.AssignedGrace,
		AssignedFee:    cfg.AssignedFee,
	}
}

// APIDeps contains what the HTTP API is built from. RedisClient and
// NewRelicApp may be nil.
type APIDeps struct {
	Storage     *Storage
	RedisClient redis.UniversalClient
	NewRelicApp *newrelic.Application
	Pricing     config.PricingConfig
	Clock       clockwork.Clock
	Logger      zerolog.Logger
}

// NewAPI wires services and handlers onto a router.
func NewAPI(deps APIDeps) *gin.Engine {
	var locationStore internalRedis.LocationStoreInterface
	if deps.RedisClient != nil {
		locationStore = internalRedis.NewLocationStore(deps.RedisClient)
	}

	var metrics outbox.MetricsCollector = outbox.NoOpMetrics{}
	if deps.NewRelicApp != nil {
		metrics = outbox.NewNewRelicMetrics(deps.NewRelicApp)
	}

	repos := deps.Storage.Repos
	tx := deps.Storage.Transactor

	tripService := service.NewTripService(repos, tx, deps.Clock, CancellationPolicy(deps.Pricing), deps.Logger)
	coordinator := service.NewAssignmentCoordinator(repos, tx, deps.Clock, nil, deps.Logger)
	matchingService := service.NewMatchingService(repos.Trips, coordinator, locationStore, deps.Logger)
	driverService := service.NewDriverService(repos.Drivers, locationStore, deps.Clock, deps.Logger)
	monitor := outbox.NewMonitor(repos.Outbox, metrics)

	return NewRouter(RouterDeps{
		TripHandler:   handler.NewTripHandler(tripService, coordinator, matchingService),
		DriverHandler: handler.NewDriverHandler(driverService),
		OutboxHandler: handler.NewOutboxHandler(monitor),
		RedisClient:   deps.RedisClient,
		NewRelicApp:   deps.NewRelicApp,
		Logger:        deps.Logger,
	})
}
