package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tripcore/internal/app"
	"tripcore/internal/config"
	"tripcore/internal/domain"
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

	logger := app.NewLogger(cfg.Log).With().Str("service", "outbox-relay").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nrApp := app.NewNewRelicApp(cfg.NewRelic, logger)
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	storage, err := app.NewStorage(ctx, cfg, nrApp, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer storage.Close()

	if !storage.Durable() {
		logger.Fatal().Str("storage", cfg.Storage.Driver).Msg("outbox relay needs shared storage; set STORAGE_DRIVER=postgres")
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to redis")
		}
		defer redisClient.Close()
	}

	dispatcher, closeDispatcher, err := app.NewDispatcher(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create outbox dispatcher")
	}
	defer closeDispatcher()

	var metrics outbox.MetricsCollector
	if nrApp != nil {
		metrics = outbox.NewNewRelicMetrics(nrApp)
	}
	monitor := outbox.NewMonitor(storage.Repos.Outbox, metrics)

	publisher := outbox.NewPublisher(storage.Transactor, dispatcher, app.PublisherConfig(cfg.Outbox), clockwork.NewRealClock(), logger, metrics)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := publisher.Start(runCtx); err != nil {
		logger.Fatal().Err(err).Msg("start outbox publisher")
	}

	// Report the backlog once a minute so stuck or failed events are visible.
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			logger.Info().Msg("shutdown signal received")
			if err := publisher.Stop(); err != nil {
				logger.Error().Err(err).Msg("stop outbox publisher")
			}
			logger.Info().Msg("graceful shutdown complete")
			return

		case <-ticker.C:
			counts, err := monitor.Backlog(runCtx)
			if err != nil {
				logger.Warn().Err(err).Msg("read outbox backlog")
				continue
			}
			logger.Info().
				Int("pending", counts[domain.OutboxStatusPending]).
				Int("failed", counts[domain.OutboxStatusFailed]).
				Msg("outbox backlog")
		}
	}
}
