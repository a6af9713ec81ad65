package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/redis"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

// ErrLocationIndexDisabled is returned by nearby searches when no location
// index is configured.
var ErrLocationIndexDisabled = errors.New("driver location index not configured")

const defaultSearchRadiusKm = 5.0

// DriverService handles driver operations.
type DriverService struct {
	drivers       repository.DriverRepository
	locationStore redis.LocationStoreInterface
	clock         clockwork.Clock
	logger        zerolog.Logger
}

// NewDriverService creates a new DriverService. locationStore may be nil, in
// which case locations are only kept on the driver record.
func NewDriverService(
	drivers repository.DriverRepository,
	locationStore redis.LocationStoreInterface,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *DriverService {
	return &DriverService{
		drivers:       drivers,
		locationStore: locationStore,
		clock:         clock,
		logger:        logger.With().Str("component", "drivers").Logger(),
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	ID               string
	Name             string
	Status           domain.DriverStatus
	LicenseExpiresAt time.Time
}

// RegisterDriver adds a driver to the bound tenant. An empty ID is generated
// and an empty status defaults to ACTIVE.
func (s *DriverService) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if req.LicenseExpiresAt.IsZero() {
		return nil, &domain.ValidationError{Field: "license_expires_at", Reason: "must be set"}
	}

	status := req.Status
	if status == "" {
		status = domain.DriverStatusActive
	}
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown driver status"}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	driver := &domain.Driver{
		ID:               id,
		TenantID:         tenantID.String(),
		Name:             req.Name,
		Status:           status,
		LicenseExpiresAt: req.LicenseExpiresAt,
	}

	if err := s.drivers.Insert(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDriverExists
		}
		return nil, err
	}

	s.logger.Info().Str("tenant_id", driver.TenantID).Str("driver_id", driver.ID).Msg("driver registered")
	return driver, nil
}

// GetDriver retrieves a driver of the bound tenant.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	driver, err := s.drivers.FindByID(ctx, tenantID.String(), driverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	return driver, nil
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation records a driver's position on the driver record and in the
// location index.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.Driver, error) {
	driver, err := s.GetDriver(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}

	version := driver.Version
	if err := driver.MoveTo(domain.Point{Lat: req.Lat, Lng: req.Lng}, s.clock.Now()); err != nil {
		return nil, err
	}

	outcome, err := s.drivers.Save(ctx, driver, version)
	if err != nil {
		return nil, err
	}
	if outcome == repository.Conflict {
		return nil, ErrDriverStateChanged
	}

	// The driver record is authoritative; a stale index only degrades nearby search.
	if s.locationStore != nil && driver.Status == domain.DriverStatusActive {
		if err := s.locationStore.UpdateLocation(ctx, driver.TenantID, driver.ID, req.Lat, req.Lng); err != nil {
			s.logger.Warn().Err(err).Str("driver_id", driver.ID).Msg("location index update failed")
		}
	}

	return driver, nil
}

// SetStatusRequest contains the parameters for changing a driver's status.
type SetStatusRequest struct {
	DriverID string
	Status   domain.DriverStatus
}

// SetStatus changes a driver's activation status. Drivers leaving ACTIVE are
// dropped from the location index.
func (s *DriverService) SetStatus(ctx context.Context, req SetStatusRequest) (*domain.Driver, error) {
	if !req.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown driver status"}
	}

	driver, err := s.GetDriver(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}

	version := driver.Version
	driver.Status = req.Status

	outcome, err := s.drivers.Save(ctx, driver, version)
	if err != nil {
		return nil, err
	}
	if outcome == repository.Conflict {
		return nil, ErrDriverStateChanged
	}

	if s.locationStore != nil {
		if driver.Status == domain.DriverStatusActive && driver.Location != nil {
			err = s.locationStore.UpdateLocation(ctx, driver.TenantID, driver.ID, driver.Location.Lat, driver.Location.Lng)
		} else if driver.Status != domain.DriverStatusActive {
			err = s.locationStore.RemoveLocation(ctx, driver.TenantID, driver.ID)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("driver_id", driver.ID).Msg("location index update failed")
		}
	}

	return driver, nil
}

// NearbyDriversRequest contains the parameters for a nearby search.
type NearbyDriversRequest struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// FindNearbyDrivers returns indexed drivers of the bound tenant around a
// point, nearest first.
func (s *DriverService) FindNearbyDrivers(ctx context.Context, req NearbyDriversRequest) ([]redis.DriverLocation, error) {
	if s.locationStore == nil {
		return nil, ErrLocationIndexDisabled
	}

	if err := (domain.Point{Lat: req.Lat, Lng: req.Lng}).Validate("location"); err != nil {
		return nil, err
	}

	radiusKm := req.RadiusKm
	if radiusKm == 0 {
		radiusKm = defaultSearchRadiusKm
	}
	if radiusKm < 0 {
		return nil, ErrInvalidRadius
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	return s.locationStore.FindNearbyDrivers(ctx, tenantID.String(), req.Lat, req.Lng, radiusKm)
}
