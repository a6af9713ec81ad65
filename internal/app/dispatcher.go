package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
	"tripcore/internal/outbox"
)

// NewDispatcher builds the outbox dispatcher named by cfg.Outbox.Dispatcher.
// The returned close function releases any connection it opened.
func NewDispatcher(ctx context.Context, cfg *config.Config, redisClient redis.UniversalClient, logger zerolog.Logger) (outbox.Dispatcher, func(), error) {
	switch cfg.Outbox.Dispatcher {
	case "jetstream":
		nc, err := NewNATSConn(cfg.NATS, logger)
		if err != nil {
			return nil, nil, err
		}

		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.StreamName = cfg.Outbox.StreamName
		jsCfg.SubjectPrefix = cfg.Outbox.SubjectPrefix

		d, err := outbox.NewJetStreamDispatcher(ctx, nc, jsCfg, logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return d, func() {
			if err := nc.Drain(); err != nil {
				logger.Error().Err(err).Msg("drain NATS connection")
			}
		}, nil

	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis dispatcher requires a redis client")
		}
		return outbox.NewRedisStreamDispatcher(redisClient, cfg.Outbox.RedisStream, cfg.Outbox.RedisMaxLen), func() {}, nil

	case "log":
		return outbox.NewLogDispatcher(logger), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown outbox dispatcher %q", cfg.Outbox.Dispatcher)
}

// PublisherConfig converts the outbox settings into the publisher's config.
func PublisherConfig(cfg config.OutboxConfig) outbox.Config {
	return outbox.Config{
		BatchSize:       cfg.BatchSize,
		MaxAttempts:     cfg.MaxAttempts,
		BaseBackoff:     cfg.BaseBackoff,
		PollInterval:    cfg.PollInterval,
		DispatchTimeout: cfg.DispatchTimeout,
	}
}
