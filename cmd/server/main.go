package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tripcore/internal/app"
	"tripcore/internal/config"
	"tripcore/internal/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	nrApp := app.NewNewRelicApp(cfg.NewRelic, logger)
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	storage, err := app.NewStorage(ctx, cfg, nrApp, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer storage.Close()

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	clock := clockwork.NewRealClock()

	router := app.NewAPI(app.APIDeps{
		Storage:     storage,
		RedisClient: redisClient,
		NewRelicApp: nrApp,
		Pricing:     cfg.Pricing,
		Clock:       clock,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The in-process publisher is for single-instance deployments; larger
	// ones run cmd/outbox-relay next to the API.
	var publisher *outbox.Publisher
	if cfg.Outbox.Enabled {
		dispatcher, closeDispatcher, err := app.NewDispatcher(ctx, cfg, redisClient, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create outbox dispatcher")
		}
		defer closeDispatcher()

		var metrics outbox.MetricsCollector
		if nrApp != nil {
			metrics = outbox.NewNewRelicMetrics(nrApp)
		}

		publisher = outbox.NewPublisher(storage.Transactor, dispatcher, app.PublisherConfig(cfg.Outbox), clock, logger, metrics)
		if err := publisher.Start(runCtx); err != nil {
			logger.Fatal().Err(err).Msg("start outbox publisher")
		}
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			logger.Error().Err(err).Msg("stop outbox publisher")
		}
	}

	logger.Info().Msg("server exited")
}
