package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/repository/memory"
	"tripcore/internal/tenant"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const testTenant = "acme"

type fixture struct {
	store *memory.Store
	clock *clockwork.FakeClock
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, release, err := tenant.Enter(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("enter tenant: %v", err)
	}
	t.Cleanup(release)

	return &fixture{
		store: memory.NewStore(),
		clock: clockwork.NewFakeClockAt(t0),
		ctx:   ctx,
	}
}

func (f *fixture) coordinator() *AssignmentCoordinator {
	return NewAssignmentCoordinator(f.store.Repositories(), f.store, f.clock, nil, zerolog.Nop())
}

func (f *fixture) trips() *TripService {
	return NewTripService(f.store.Repositories(), f.store, f.clock, DefaultCancellationPolicy(), zerolog.Nop())
}

func (f *fixture) addTrip(t *testing.T, id string) *domain.Trip {
	t.Helper()
	trip, err := domain.NewTrip(id, testTenant, "passenger-1",
		domain.Point{Lat: 52.5200, Lng: 13.4050}, domain.Point{Lat: 52.5000, Lng: 13.4500}, "EUR", f.clock.Now())
	if err != nil {
		t.Fatalf("new trip: %v", err)
	}
	if err := f.store.Repositories().Trips.Insert(context.Background(), trip); err != nil {
		t.Fatalf("insert trip: %v", err)
	}
	return trip
}

func (f *fixture) addDriver(t *testing.T, id string) *domain.Driver {
	t.Helper()
	driver := &domain.Driver{
		ID:               id,
		TenantID:         testTenant,
		Name:             "Driver " + id,
		Status:           domain.DriverStatusActive,
		Location:         &domain.Point{Lat: 52.5100, Lng: 13.4000},
		LicenseExpiresAt: t0.AddDate(1, 0, 0),
	}
	if err := f.store.Repositories().Drivers.Insert(context.Background(), driver); err != nil {
		t.Fatalf("insert driver: %v", err)
	}
	return driver
}

func (f *fixture) trip(t *testing.T, id string) *domain.Trip {
	t.Helper()
	trip, err := f.store.Repositories().Trips.FindByID(context.Background(), testTenant, id)
	if err != nil {
		t.Fatalf("find trip: %v", err)
	}
	return trip
}

func (f *fixture) driver(t *testing.T, id string) *domain.Driver {
	t.Helper()
	driver, err := f.store.Repositories().Drivers.FindByID(context.Background(), testTenant, id)
	if err != nil {
		t.Fatalf("find driver: %v", err)
	}
	return driver
}

func (f *fixture) events(t *testing.T) []*domain.OutboxEvent {
	t.Helper()
	events, err := f.store.Repositories().Outbox.ClaimDue(context.Background(), f.clock.Now().Add(time.Hour), 1000)
	if err != nil {
		t.Fatalf("claim events: %v", err)
	}
	return events
}

// barrierTrips holds every FindByID caller until n callers have loaded, so
// all of them act on the same version.
type barrierTrips struct {
	repository.TripRepository
	wg *sync.WaitGroup
}

func (b *barrierTrips) FindByID(ctx context.Context, tenantID, id string) (*domain.Trip, error) {
	trip, err := b.TripRepository.FindByID(ctx, tenantID, id)
	b.wg.Done()
	b.wg.Wait()
	return trip, err
}

type barrierDrivers struct {
	repository.DriverRepository
	wg *sync.WaitGroup
}

func (b *barrierDrivers) FindByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	driver, err := b.DriverRepository.FindByID(ctx, tenantID, id)
	b.wg.Done()
	b.wg.Wait()
	return driver, err
}
