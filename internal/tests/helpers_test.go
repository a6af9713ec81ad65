package tests

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/service"
	"tripcore/internal/tenant"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type world struct {
	trips   *MockTripRepository
	drivers *MockDriverRepository
	events  *MockOutboxRepository
	tx      *MockTransactor
	clock   *clockwork.FakeClock
}

func newWorld() *world {
	w := &world{
		trips:   NewMockTripRepository(),
		drivers: NewMockDriverRepository(),
		events:  NewMockOutboxRepository(),
		clock:   clockwork.NewFakeClockAt(t0),
	}
	w.tx = NewMockTransactor(w.repos())
	return w
}

func (w *world) repos() repository.Repositories {
	return repository.Repositories{Trips: w.trips, Drivers: w.drivers, Outbox: w.events}
}

func (w *world) tripService() *service.TripService {
	return service.NewTripService(w.repos(), w.tx, w.clock, service.DefaultCancellationPolicy(), zerolog.Nop())
}

func (w *world) coordinator() *service.AssignmentCoordinator {
	return service.NewAssignmentCoordinator(w.repos(), w.tx, w.clock, nil, zerolog.Nop())
}

func (w *world) addDriver(tenantID, id string) {
	w.drivers.AddDriver(&domain.Driver{
		ID:               id,
		TenantID:         tenantID,
		Name:             "Driver " + id,
		Status:           domain.DriverStatusActive,
		Location:         &domain.Point{Lat: 52.51, Lng: 13.40},
		LicenseExpiresAt: t0.AddDate(1, 0, 0),
	})
}

func bind(t *testing.T, tenantID string) context.Context {
	t.Helper()
	ctx, release, err := tenant.Enter(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("enter tenant %s: %v", tenantID, err)
	}
	t.Cleanup(release)
	return ctx
}

func requestTrip(t *testing.T, ctx context.Context, svc *service.TripService) *domain.Trip {
	t.Helper()
	trip, err := svc.RequestTrip(ctx, service.RequestTripRequest{
		PassengerID: "passenger-1",
		Origin:      domain.Point{Lat: 52.52, Lng: 13.405},
		Destination: domain.Point{Lat: 52.50, Lng: 13.45},
		Currency:    "EUR",
	})
	if err != nil {
		t.Fatalf("request trip: %v", err)
	}
	return trip
}
