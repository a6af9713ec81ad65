package app

import (
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
)

// NewNewRelicApp starts the New Relic agent. It returns nil when the agent is
// disabled or fails to start; every consumer treats nil as "not instrumented".
func NewNewRelicApp(cfg config.NewRelicConfig, logger zerolog.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize New Relic")
		return nil
	}

	logger.Info().Str("app", cfg.AppName).Msg("New Relic enabled")
	return nrApp
}
