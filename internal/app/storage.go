package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
	"tripcore/internal/repository"
	"tripcore/internal/repository/memory"
	"tripcore/internal/repository/postgres"
)

// Storage is the repository backend selected by configuration.
type Storage struct {
	Repos      repository.Repositories
	Transactor repository.Transactor
	db         *sql.DB
}

// NewStorage opens the configured backend. The memory backend keeps state for
// the life of the process only.
func NewStorage(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, logger zerolog.Logger) (*Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		logger.Warn().Msg("using in-memory storage; state is lost on restart")
		return &Storage{Repos: store.Repositories(), Transactor: store}, nil

	case "postgres":
		db, err := NewDatabase(ctx, cfg.Database, nrApp, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
			logger.Info().Msg("database schema ensured")
		}
		return &Storage{
			Repos:      postgres.NewRepositories(db),
			Transactor: postgres.NewTransactor(db),
			db:         db,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Durable reports whether state survives the process.
func (s *Storage) Durable() bool {
	return s.db != nil
}

// Close releases the database pool, if any.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
