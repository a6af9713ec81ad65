package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/redis"
)

type fakeLocationStore struct {
	mu        sync.Mutex
	locations map[string]redis.DriverLocation
	err       error
}

func newFakeLocationStore() *fakeLocationStore {
	return &fakeLocationStore{locations: make(map[string]redis.DriverLocation)}
}

func (s *fakeLocationStore) UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.locations[tenantID+"/"+driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (s *fakeLocationStore) FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []redis.DriverLocation
	for _, loc := range s.locations {
		if domain.HaversineKm(domain.Point{Lat: lat, Lng: lng}, domain.Point{Lat: loc.Lat, Lng: loc.Lng}) <= radiusKm {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (s *fakeLocationStore) RemoveLocation(ctx context.Context, tenantID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, tenantID+"/"+driverID)
	return nil
}

func (s *fakeLocationStore) has(tenantID, driverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locations[tenantID+"/"+driverID]
	return ok
}

func TestDriverService_RegisterAndGet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := NewDriverService(f.store.Repositories().Drivers, nil, f.clock, zerolog.Nop())

	driver, err := svc.RegisterDriver(f.ctx, RegisterDriverRequest{
		ID:               "driver-1",
		Name:             "Ada",
		LicenseExpiresAt: t0.AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if driver.Status != domain.DriverStatusActive || driver.TenantID != testTenant {
		t.Errorf("unexpected driver: %+v", driver)
	}

	_, err = svc.RegisterDriver(f.ctx, RegisterDriverRequest{ID: "driver-1", Name: "Ada", LicenseExpiresAt: t0})
	if !errors.Is(err, ErrDriverExists) {
		t.Errorf("expected ErrDriverExists, got %v", err)
	}

	_, err = svc.RegisterDriver(f.ctx, RegisterDriverRequest{Name: "Bob", Status: "RETIRED", LicenseExpiresAt: t0})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	if _, err := svc.GetDriver(f.ctx, "nobody"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}
}

func TestDriverService_UpdateLocationIndexesActiveDrivers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addDriver(t, "driver-1")
	index := newFakeLocationStore()
	svc := NewDriverService(f.store.Repositories().Drivers, index, f.clock, zerolog.Nop())

	driver, err := svc.UpdateLocation(f.ctx, UpdateLocationRequest{DriverID: "driver-1", Lat: 52.53, Lng: 13.41})
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if driver.Location.Lat != 52.53 || driver.Version != 1 {
		t.Errorf("unexpected driver: %+v", driver)
	}
	if !index.has(testTenant, "driver-1") {
		t.Error("expected driver in location index")
	}

	nearby, err := svc.FindNearbyDrivers(f.ctx, NearbyDriversRequest{Lat: 52.53, Lng: 13.41})
	if err != nil || len(nearby) != 1 {
		t.Fatalf("expected one nearby driver, got %v %v", nearby, err)
	}

	if _, err := svc.UpdateLocation(f.ctx, UpdateLocationRequest{DriverID: "driver-1", Lat: 95}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	if _, err := svc.SetStatus(f.ctx, SetStatusRequest{DriverID: "driver-1", Status: domain.DriverStatusInactive}); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if index.has(testTenant, "driver-1") {
		t.Error("expected inactive driver removed from index")
	}
}

func TestDriverService_IndexFailureDoesNotFailUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addDriver(t, "driver-1")
	index := newFakeLocationStore()
	index.err = errors.New("redis down")
	svc := NewDriverService(f.store.Repositories().Drivers, index, f.clock, zerolog.Nop())

	if _, err := svc.UpdateLocation(f.ctx, UpdateLocationRequest{DriverID: "driver-1", Lat: 1, Lng: 1}); err != nil {
		t.Fatalf("expected success despite index failure, got %v", err)
	}
	if d := f.driver(t, "driver-1"); d.Location == nil || d.Location.Lat != 1 {
		t.Errorf("expected stored location, got %+v", d.Location)
	}
}

func TestDriverService_NearbyWithoutIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := NewDriverService(f.store.Repositories().Drivers, nil, f.clock, zerolog.Nop())

	if _, err := svc.FindNearbyDrivers(f.ctx, NearbyDriversRequest{Lat: 1, Lng: 1}); !errors.Is(err, ErrLocationIndexDisabled) {
		t.Errorf("expected ErrLocationIndexDisabled, got %v", err)
	}
}
