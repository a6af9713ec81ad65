package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/redis"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

// MatchingService finds a driver for a trip by trying nearby drivers in order
// of distance through the assignment coordinator.
type MatchingService struct {
	trips         repository.TripRepository
	coordinator   *AssignmentCoordinator
	locationStore redis.LocationStoreInterface
	logger        zerolog.Logger
}

// NewMatchingService creates a new MatchingService. locationStore may be nil,
// in which case every match fails with ErrLocationIndexDisabled.
func NewMatchingService(
	trips repository.TripRepository,
	coordinator *AssignmentCoordinator,
	locationStore redis.LocationStoreInterface,
	logger zerolog.Logger,
) *MatchingService {
	return &MatchingService{
		trips:         trips,
		coordinator:   coordinator,
		locationStore: locationStore,
		logger:        logger.With().Str("component", "matching").Logger(),
	}
}

// MatchTripRequest contains the parameters for matching a trip.
type MatchTripRequest struct {
	TripID   string
	RadiusKm float64 // Optional: 0 uses default
}

// MatchTrip assigns the nearest driver able to take the trip. A candidate that
// is ineligible, gone or changed concurrently is skipped; losing the trip
// itself ends the search.
func (s *MatchingService) MatchTrip(ctx context.Context, req MatchTripRequest) (*AssignDriverResult, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if s.locationStore == nil {
		return nil, ErrLocationIndexDisabled
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

	trip, err := s.trips.FindByID(ctx, tenantID.String(), req.TripID)
	if err != nil {
		return nil, notFound(err, ErrTripNotFound)
	}
	if trip.Status != domain.TripStatusRequested {
		return nil, &domain.InvalidStateError{Entity: "trip", Op: "match", Status: string(trip.Status)}
	}

	candidates, err := s.locationStore.FindNearbyDrivers(ctx, tenantID.String(), trip.Origin.Lat, trip.Origin.Lng, radiusKm)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	for _, candidate := range candidates {
		result, err := s.coordinator.AssignDriver(ctx, AssignDriverRequest{
			TripID:   trip.ID,
			DriverID: candidate.DriverID,
		})
		if err == nil {
			return result, nil
		}
		if !skippable(err) {
			return nil, err
		}

		s.logger.Debug().
			Err(err).
			Str("tenant_id", tenantID.String()).
			Str("trip_id", trip.ID).
			Str("driver_id", candidate.DriverID).
			Msg("candidate skipped")
	}

	return nil, ErrNoDriverAvailable
}

// skippable reports whether a failed assignment was the candidate's fault.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrIneligible) ||
		errors.Is(err, ErrDriverNotFound) ||
		errors.Is(err, ErrDriverStateChanged)
}
