package repository

import (
	"context"

	"tripcore/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Insert adds a new driver at version 0.
	Insert(ctx context.Context, driver *domain.Driver) error

	// FindByID retrieves a driver of the given tenant.
	FindByID(ctx context.Context, tenantID, id string) (*domain.Driver, error)

	// Save writes driver if the stored version still equals expectedVersion.
	Save(ctx context.Context, driver *domain.Driver, expectedVersion int64) (SaveOutcome, error)
}
