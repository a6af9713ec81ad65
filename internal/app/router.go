package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tripcore/internal/handler"
	"tripcore/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler   *handler.TripHandler
	DriverHandler *handler.DriverHandler
	OutboxHandler *handler.OutboxHandler
	RedisClient   redis.UniversalClient
	NewRelicApp   *newrelic.Application
	Logger        zerolog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Outbox backlog across all tenants.
	admin := router.Group("/admin")
	{
		admin.GET("/outbox/stats", deps.OutboxHandler.Stats)
	}

	// API v1 routes. Every request is bound to a tenant.
	v1 := router.Group("/v1")
	v1.Use(middleware.Tenant())
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.RequestTrip)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.POST("/:id/assign", deps.TripHandler.AssignDriver)
			trips.POST("/:id/match", deps.TripHandler.MatchTrip)
			trips.POST("/:id/start", deps.TripHandler.StartTrip)
			trips.POST("/:id/complete", deps.TripHandler.CompleteTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.GET("/:id/cancellation-fee", deps.TripHandler.QuoteCancellationFee)
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Register)
			drivers.GET("/nearby", deps.DriverHandler.Nearby)
			drivers.GET("/:id", deps.DriverHandler.GetDriver)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/status", deps.DriverHandler.SetStatus)
		}

		events := v1.Group("/outbox")
		{
			events.GET("/events", deps.OutboxHandler.ListEvents)
		}
	}

	return router
}
