package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tripcore/internal/domain"
	"tripcore/internal/outbox"
	"tripcore/internal/redis"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

func mockKey(tenantID, id string) string {
	return tenantID + "/" + id
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	SaveCallCount     int32
	ConflictCallCount int32

	// Error injection
	FindError error
	SaveError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[mockKey(trip.TenantID, trip.ID)] = &copy
}

func (m *MockTripRepository) Insert(ctx context.Context, trip *domain.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mockKey(trip.TenantID, trip.ID)
	if _, ok := m.trips[k]; ok {
		return repository.ErrDuplicate
	}
	trip.Version = 0
	copy := *trip
	m.trips[k] = &copy
	return nil
}

func (m *MockTripRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Trip, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[mockKey(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) Save(ctx context.Context, trip *domain.Trip, expectedVersion int64) (repository.SaveOutcome, error) {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return 0, m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mockKey(trip.TenantID, trip.ID)
	stored, ok := m.trips[k]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		atomic.AddInt32(&m.ConflictCallCount, 1)
		return repository.Conflict, nil
	}
	trip.Version = expectedVersion + 1
	copy := *trip
	m.trips[k] = &copy
	return repository.Saved, nil
}

// GetTrip returns trip for assertions.
func (m *MockTripRepository) GetTrip(tenantID, id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[mockKey(tenantID, id)]
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	SaveCallCount int32

	// Error injection
	SaveError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[mockKey(driver.TenantID, driver.ID)] = &copy
}

func (m *MockDriverRepository) Insert(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mockKey(driver.TenantID, driver.ID)
	if _, ok := m.drivers[k]; ok {
		return repository.ErrDuplicate
	}
	driver.Version = 0
	copy := *driver
	m.drivers[k] = &copy
	return nil
}

func (m *MockDriverRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[mockKey(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) Save(ctx context.Context, driver *domain.Driver, expectedVersion int64) (repository.SaveOutcome, error) {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return 0, m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mockKey(driver.TenantID, driver.ID)
	stored, ok := m.drivers[k]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.Conflict, nil
	}
	driver.Version = expectedVersion + 1
	copy := *driver
	m.drivers[k] = &copy
	return repository.Saved, nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(tenantID, id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[mockKey(tenantID, id)]
}

// ──────────────────────────────────────────────
// MOCK OUTBOX REPOSITORY
// ──────────────────────────────────────────────

// MockOutboxRepository is a mock implementation of OutboxRepository. Events
// are kept in append order.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	// Counters for verification
	AppendCallCount int32

	// Error injection
	AppendError error
}

// NewMockOutboxRepository creates a new mock outbox repository.
func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *event
	m.events = append(m.events, &copy)
	return nil
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, ev := range m.events {
		if len(out) == limit {
			break
		}
		if ev.Status == domain.OutboxStatusPending && !ev.NextAttemptAt.After(now) {
			copy := *ev
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.events {
		if ev.ID == event.ID {
			copy := *event
			m.events[i] = &copy
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockOutboxRepository) ListByStatus(ctx context.Context, tenantID string, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if ev.TenantID == tenantID && ev.Status == status {
			copy := *ev
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.OutboxStatus]int)
	for _, ev := range m.events {
		counts[ev.Status]++
	}
	return counts, nil
}

// EventTypes returns the event types recorded for an aggregate, in order.
func (m *MockOutboxRepository) EventTypes(aggregateID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []string
	for _, ev := range m.events {
		if ev.AggregateID == aggregateID {
			types = append(types, ev.EventType)
		}
	}
	return types
}

// Events returns a snapshot of every recorded event.
func (m *MockOutboxRepository) Events() []domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.OutboxEvent, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, *ev)
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs fn against the mock repositories. Writes are applied
// immediately and are not undone when fn fails, so tests that need rollback
// use the in-memory store instead.
type MockTransactor struct {
	Repos repository.Repositories

	// Counters for verification
	CommitCount   int32
	RollbackCount int32
}

// NewMockTransactor creates a transactor over repos.
func NewMockTransactor(repos repository.Repositories) *MockTransactor {
	return &MockTransactor{Repos: repos}
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := fn(ctx, m.Repos); err != nil {
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}
	atomic.AddInt32(&m.CommitCount, 1)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]map[string]redis.DriverLocation

	// Counters for verification
	UpdateCallCount int32
	RemoveCallCount int32

	// Error injection
	UpdateError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]map[string]redis.DriverLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locations[tenantID] == nil {
		m.locations[tenantID] = make(map[string]redis.DriverLocation)
	}
	m.locations[tenantID][driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	center := domain.Point{Lat: lat, Lng: lng}
	var result []redis.DriverLocation
	for _, loc := range m.locations[tenantID] {
		d := domain.HaversineKm(center, domain.Point{Lat: loc.Lat, Lng: loc.Lng})
		if d <= radiusKm {
			loc.DistanceKm = d
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, tenantID, driverID string) error {
	atomic.AddInt32(&m.RemoveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations[tenantID], driverID)
	return nil
}

// Has reports whether the driver is indexed for the tenant.
func (m *MockLocationStore) Has(tenantID, driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[tenantID][driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK DISPATCHER
// ──────────────────────────────────────────────

// MockDispatcher records every envelope it is handed together with the
// tenant bound while dispatching.
type MockDispatcher struct {
	mu        sync.Mutex
	envelopes []outbox.Envelope
	tenants   []string

	// Error injection: events of these types fail.
	FailTypes map[string]error
}

// NewMockDispatcher creates a new mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{FailTypes: make(map[string]error)}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, env outbox.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailTypes[env.EventType]; ok {
		return err
	}
	bound, _ := tenant.FromContext(ctx)
	m.envelopes = append(m.envelopes, env)
	m.tenants = append(m.tenants, string(bound))
	return nil
}

// Delivered returns the envelopes dispatched successfully, in order.
func (m *MockDispatcher) Delivered() []outbox.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Envelope(nil), m.envelopes...)
}

// Tenants returns the tenant bound for each delivered envelope.
func (m *MockDispatcher) Tenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tenants...)
}

// Compile-time interface checks.
var (
	_ repository.TripRepository    = (*MockTripRepository)(nil)
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ repository.OutboxRepository  = (*MockOutboxRepository)(nil)
	_ repository.Transactor        = (*MockTransactor)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ outbox.Dispatcher            = (*MockDispatcher)(nil)
)
