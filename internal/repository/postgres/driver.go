package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, tenant_id, name, status, location_lat, location_lng,
	location_updated_at, license_expires_at, current_trip_id, version`

func locationArgs(d *domain.Driver) (sql.NullFloat64, sql.NullFloat64) {
	if d.Location == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: d.Location.Lat, Valid: true},
		sql.NullFloat64{Float64: d.Location.Lng, Valid: true}
}

// Insert adds a new driver.
func (r *DriverRepository) Insert(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (` + driverColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)`

	lat, lng := locationArgs(driver)
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.TenantID,
		driver.Name,
		driver.Status,
		lat,
		lng,
		nullTime(driver.LocationUpdatedAt),
		driver.LicenseExpiresAt,
		nullString(driver.CurrentTripID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert driver %s: %w", driver.ID, err)
	}

	driver.Version = 0
	return nil
}

// FindByID retrieves a driver of the given tenant.
func (r *DriverRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE tenant_id = $1 AND id = $2`

	var (
		driver            domain.Driver
		lat, lng          sql.NullFloat64
		locationUpdatedAt sql.NullTime
		currentTripID     sql.NullString
	)

	err := r.q.QueryRowContext(ctx, query, tenantID, id).Scan(
		&driver.ID,
		&driver.TenantID,
		&driver.Name,
		&driver.Status,
		&lat,
		&lng,
		&locationUpdatedAt,
		&driver.LicenseExpiresAt,
		&currentTripID,
		&driver.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find driver %s: %w", id, err)
	}

	if lat.Valid && lng.Valid {
		driver.Location = &domain.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	driver.LocationUpdatedAt = timePtr(locationUpdatedAt)
	driver.CurrentTripID = currentTripID.String

	return &driver, nil
}

// Save writes driver when the stored version equals expectedVersion.
func (r *DriverRepository) Save(ctx context.Context, driver *domain.Driver, expectedVersion int64) (repository.SaveOutcome, error) {
	query := `
		UPDATE drivers
		SET name = $4, status = $5, location_lat = $6, location_lng = $7, location_updated_at = $8,
			license_expires_at = $9, current_trip_id = $10, version = version + 1
		WHERE tenant_id = $1 AND id = $2 AND version = $3
	`

	lat, lng := locationArgs(driver)
	result, err := r.q.ExecContext(ctx, query,
		driver.TenantID,
		driver.ID,
		expectedVersion,
		driver.Name,
		driver.Status,
		lat,
		lng,
		nullTime(driver.LocationUpdatedAt),
		driver.LicenseExpiresAt,
		nullString(driver.CurrentTripID),
	)
	if err != nil {
		return 0, fmt.Errorf("save driver %s: %w", driver.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rowsAffected == 0 {
		found, err := exists(ctx, r.q, "drivers", driver.TenantID, driver.ID)
		if err != nil {
			return 0, fmt.Errorf("check driver %s: %w", driver.ID, err)
		}
		if !found {
			return 0, repository.ErrNotFound
		}
		return repository.Conflict, nil
	}

	driver.Version = expectedVersion + 1
	return repository.Saved, nil
}
