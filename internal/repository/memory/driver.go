package memory

import (
	"context"
	"time"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

type driverRow struct {
	driver domain.Driver
}

// DriverRepository is an in-memory implementation of repository.DriverRepository.
type DriverRepository struct {
	s  *Store
	tx *tables
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func (r *DriverRepository) get(k string) (*driverRow, bool) {
	if r.tx != nil {
		if row, ok := r.tx.drivers[k]; ok {
			return row, true
		}
	}
	row, ok := r.s.data.drivers[k]
	return row, ok
}

func (r *DriverRepository) put(k string, row *driverRow) {
	if r.tx != nil {
		r.tx.drivers[k] = row
		return
	}
	r.s.data.drivers[k] = row
}

// Insert adds a new driver.
func (r *DriverRepository) Insert(ctx context.Context, driver *domain.Driver) error {
	defer r.s.lock(true)()

	k := key(driver.TenantID, driver.ID)
	r.s.acquireRow(r.tx, "driver/"+k)
	if _, ok := r.get(k); ok {
		return repository.ErrDuplicate
	}

	driver.Version = 0
	r.put(k, &driverRow{driver: cloneDriver(*driver)})
	return nil
}

// FindByID retrieves a driver of the given tenant.
func (r *DriverRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	defer r.s.lock(false)()

	row, ok := r.get(key(tenantID, id))
	if !ok {
		return nil, repository.ErrNotFound
	}
	driver := cloneDriver(row.driver)
	return &driver, nil
}

// Save writes driver when the stored version equals expectedVersion.
func (r *DriverRepository) Save(ctx context.Context, driver *domain.Driver, expectedVersion int64) (repository.SaveOutcome, error) {
	defer r.s.lock(true)()

	k := key(driver.TenantID, driver.ID)
	r.s.acquireRow(r.tx, "driver/"+k)
	row, ok := r.get(k)
	if !ok {
		return 0, repository.ErrNotFound
	}
	if row.driver.Version != expectedVersion {
		return repository.Conflict, nil
	}

	next := cloneDriver(*driver)
	next.Version = expectedVersion + 1
	r.put(k, &driverRow{driver: next})
	driver.Version = next.Version
	return repository.Saved, nil
}

func cloneDriver(d domain.Driver) domain.Driver {
	if d.Location != nil {
		loc := *d.Location
		d.Location = &loc
	}
	d.LocationUpdatedAt = cloneTime(d.LocationUpdatedAt)
	return d
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}
