package repository

import (
	"context"

	"tripcore/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Insert persists a new trip at version 0.
	Insert(ctx context.Context, trip *domain.Trip) error

	// FindByID retrieves a trip of the given tenant.
	FindByID(ctx context.Context, tenantID, id string) (*domain.Trip, error)

	// Save writes trip if the stored version still equals expectedVersion.
	// On Saved, trip.Version is set to expectedVersion+1.
	Save(ctx context.Context, trip *domain.Trip, expectedVersion int64) (SaveOutcome, error)
}
