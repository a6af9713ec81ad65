package app

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
)

// NewNATSConn connects to NATS with reconnect handling.
func NewNATSConn(cfg config.NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("tripcore"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")
	return nc, nil
}
