package outbox

import (
	"time"

	"tripcore/internal/domain"
)

// Config controls how the publisher drains the outbox.
type Config struct {
	BatchSize       int
	MaxAttempts     int
	BaseBackoff     time.Duration
	PollInterval    time.Duration
	DispatchTimeout time.Duration
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		MaxAttempts:     5,
		BaseBackoff:     5 * time.Second,
		PollInterval:    3 * time.Second,
		DispatchTimeout: 10 * time.Second,
	}
}

// RetryPolicy returns the retry policy applied to failed dispatches.
func (c Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseBackoff: c.BaseBackoff,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = def.DispatchTimeout
	}
	return c
}
