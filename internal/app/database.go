package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers "pgx" driver
	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // Registers "nrpostgres" driver
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"tripcore/internal/config"
)

// NewDatabase opens a PostgreSQL pool. With DB_DRIVER=postgres and New Relic
// enabled the instrumented nrpostgres driver is used for SQL tracing.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application, logger zerolog.Logger) (*sql.DB, error) {
	driverName := sqlDriverName(cfg.Driver, nrApp != nil)

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database with %s: %w", driverName, err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("driver", driverName).
		Str("host", cfg.Host).
		Str("database", cfg.DBName).
		Msg("connected to database")

	return db, nil
}

func sqlDriverName(driver string, instrumented bool) string {
	switch driver {
	case "pgx":
		return "pgx"
	default:
		if instrumented {
			return "nrpostgres"
		}
		return "postgres"
	}
}
