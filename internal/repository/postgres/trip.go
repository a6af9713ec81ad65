package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `id, tenant_id, passenger_id, driver_id,
	origin_lat, origin_lng, destination_lat, destination_lng, currency, status,
	created_at, assigned_at, started_at, completed_at, cancelled_at,
	cancelled_by, cancel_reason, version`

// Insert persists a new trip.
func (r *TripRepository) Insert(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 0)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.TenantID,
		trip.PassengerID,
		nullString(trip.DriverID),
		trip.Origin.Lat,
		trip.Origin.Lng,
		trip.Destination.Lat,
		trip.Destination.Lng,
		trip.Currency,
		trip.Status,
		trip.CreatedAt,
		nullTime(trip.AssignedAt),
		nullTime(trip.StartedAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
		nullString(string(trip.CancelledBy)),
		nullString(trip.CancelReason),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert trip %s: %w", trip.ID, err)
	}

	trip.Version = 0
	return nil
}

// FindByID retrieves a trip of the given tenant.
func (r *TripRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE tenant_id = $1 AND id = $2`

	var (
		trip                                            domain.Trip
		driverID, cancelledBy, cancelReason             sql.NullString
		assignedAt, startedAt, completedAt, cancelledAt sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, query, tenantID, id).Scan(
		&trip.ID,
		&trip.TenantID,
		&trip.PassengerID,
		&driverID,
		&trip.Origin.Lat,
		&trip.Origin.Lng,
		&trip.Destination.Lat,
		&trip.Destination.Lng,
		&trip.Currency,
		&trip.Status,
		&trip.CreatedAt,
		&assignedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
		&trip.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find trip %s: %w", id, err)
	}

	trip.DriverID = driverID.String
	trip.CancelledBy = domain.Actor(cancelledBy.String)
	trip.CancelReason = cancelReason.String
	trip.AssignedAt = timePtr(assignedAt)
	trip.StartedAt = timePtr(startedAt)
	trip.CompletedAt = timePtr(completedAt)
	trip.CancelledAt = timePtr(cancelledAt)

	return &trip, nil
}

// Save writes trip when the stored version equals expectedVersion.
func (r *TripRepository) Save(ctx context.Context, trip *domain.Trip, expectedVersion int64) (repository.SaveOutcome, error) {
	query := `
		UPDATE trips
		SET driver_id = $4, status = $5, assigned_at = $6, started_at = $7, completed_at = $8,
			cancelled_at = $9, cancelled_by = $10, cancel_reason = $11, version = version + 1
		WHERE tenant_id = $1 AND id = $2 AND version = $3
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.TenantID,
		trip.ID,
		expectedVersion,
		nullString(trip.DriverID),
		trip.Status,
		nullTime(trip.AssignedAt),
		nullTime(trip.StartedAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
		nullString(string(trip.CancelledBy)),
		nullString(trip.CancelReason),
	)
	if err != nil {
		return 0, fmt.Errorf("save trip %s: %w", trip.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rowsAffected == 0 {
		found, err := exists(ctx, r.q, "trips", trip.TenantID, trip.ID)
		if err != nil {
			return 0, fmt.Errorf("check trip %s: %w", trip.ID, err)
		}
		if !found {
			return 0, repository.ErrNotFound
		}
		return repository.Conflict, nil
	}

	trip.Version = expectedVersion + 1
	return repository.Saved, nil
}
