package memory

import (
	"context"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

type tripRow struct {
	trip domain.Trip
}

// TripRepository is an in-memory implementation of repository.TripRepository.
type TripRepository struct {
	s  *Store
	tx *tables
}

var _ repository.TripRepository = (*TripRepository)(nil)

func (r *TripRepository) get(k string) (*tripRow, bool) {
	if r.tx != nil {
		if row, ok := r.tx.trips[k]; ok {
			return row, true
		}
	}
	row, ok := r.s.data.trips[k]
	return row, ok
}

func (r *TripRepository) put(k string, row *tripRow) {
	if r.tx != nil {
		r.tx.trips[k] = row
		return
	}
	r.s.data.trips[k] = row
}

// Insert persists a new trip.
func (r *TripRepository) Insert(ctx context.Context, trip *domain.Trip) error {
	defer r.s.lock(true)()

	k := key(trip.TenantID, trip.ID)
	r.s.acquireRow(r.tx, "trip/"+k)
	if _, ok := r.get(k); ok {
		return repository.ErrDuplicate
	}

	trip.Version = 0
	r.put(k, &tripRow{trip: cloneTrip(*trip)})
	return nil
}

// FindByID retrieves a trip of the given tenant.
func (r *TripRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Trip, error) {
	defer r.s.lock(false)()

	row, ok := r.get(key(tenantID, id))
	if !ok {
		return nil, repository.ErrNotFound
	}
	trip := cloneTrip(row.trip)
	return &trip, nil
}

// Save writes trip when the stored version equals expectedVersion.
func (r *TripRepository) Save(ctx context.Context, trip *domain.Trip, expectedVersion int64) (repository.SaveOutcome, error) {
	defer r.s.lock(true)()

	k := key(trip.TenantID, trip.ID)
	r.s.acquireRow(r.tx, "trip/"+k)
	row, ok := r.get(k)
	if !ok {
		return 0, repository.ErrNotFound
	}
	if row.trip.Version != expectedVersion {
		return repository.Conflict, nil
	}

	next := cloneTrip(*trip)
	next.Version = expectedVersion + 1
	r.put(k, &tripRow{trip: next})
	trip.Version = next.Version
	return repository.Saved, nil
}

func cloneTrip(t domain.Trip) domain.Trip {
	t.AssignedAt = cloneTime(t.AssignedAt)
	t.StartedAt = cloneTime(t.StartedAt)
	t.CompletedAt = cloneTime(t.CompletedAt)
	t.CancelledAt = cloneTime(t.CancelledAt)
	return t
}
