package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

// AssignmentCoordinator binds drivers to requested trips. Concurrent claims
// on the same trip are resolved by the trip's version: exactly one save wins
// and every other claimant gets ErrTripAlreadyClaimed. There is no retry.
type AssignmentCoordinator struct {
	repos    repository.Repositories
	tx       repository.Transactor
	clock    clockwork.Clock
	distance domain.DistanceFunc
	logger   zerolog.Logger
}

// NewAssignmentCoordinator creates a new AssignmentCoordinator. A nil
// distance falls back to the haversine distance.
func NewAssignmentCoordinator(
	repos repository.Repositories,
	tx repository.Transactor,
	clock clockwork.Clock,
	distance domain.DistanceFunc,
	logger zerolog.Logger,
) *AssignmentCoordinator {
	if distance == nil {
		distance = domain.HaversineKm
	}
	return &AssignmentCoordinator{
		repos:    repos,
		tx:       tx,
		clock:    clock,
		distance: distance,
		logger:   logger.With().Str("component", "assignment").Logger(),
	}
}

// AssignDriverRequest contains the parameters for assigning a driver.
type AssignDriverRequest struct {
	TripID   string
	DriverID string
}

// AssignDriverResult contains the result of a successful assignment.
type AssignDriverResult struct {
	Trip    *domain.Trip
	Driver  *domain.Driver
	EventID string
}

// AssignDriver claims a REQUESTED trip for an eligible driver. The trip, the
// driver and the DriverAssigned outbox event are written in one transaction.
func (c *AssignmentCoordinator) AssignDriver(ctx context.Context, req AssignDriverRequest) (*AssignDriverResult, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	trip, err := c.repos.Trips.FindByID(ctx, tenantID.String(), req.TripID)
	if err != nil {
		return nil, notFound(err, ErrTripNotFound)
	}

	driver, err := c.repos.Drivers.FindByID(ctx, tenantID.String(), req.DriverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}

	now := c.clock.Now()

	if err := driver.CheckEligibility(now); err != nil {
		return nil, err
	}

	tripVersion := trip.Version
	driverVersion := driver.Version

	if err := trip.AssignDriver(driver.ID, now); err != nil {
		return nil, err
	}

	if err := driver.AttachTrip(trip.ID); err != nil {
		return nil, err
	}

	var pickupKm float64
	if driver.Location != nil {
		pickupKm = c.distance(*driver.Location, trip.Origin)
	}

	event, err := newTripEvent(ctx, trip, domain.EventDriverAssigned, domain.DriverAssignedPayload{
		TripID:           trip.ID,
		DriverID:         driver.ID,
		PassengerID:      trip.PassengerID,
		PickupDistanceKm: pickupKm,
		AssignedAt:       now,
		Version:          tripVersion + 1,
	}, now)
	if err != nil {
		return nil, err
	}

	err = c.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		outcome, err := repos.Trips.Save(ctx, trip, tripVersion)
		if err != nil {
			return err
		}
		if outcome == repository.Conflict {
			return ErrTripAlreadyClaimed
		}

		outcome, err = repos.Drivers.Save(ctx, driver, driverVersion)
		if err != nil {
			return err
		}
		if outcome == repository.Conflict {
			return ErrDriverStateChanged
		}

		return repos.Outbox.Append(ctx, event)
	})
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("tenant_id", tenantID.String()).
			Str("trip_id", req.TripID).
			Str("driver_id", req.DriverID).
			Msg("assignment rejected")
		return nil, err
	}

	c.logger.Info().
		Str("tenant_id", tenantID.String()).
		Str("trip_id", trip.ID).
		Str("driver_id", driver.ID).
		Str("event_id", event.ID).
		Float64("pickup_distance_km", pickupKm).
		Msg("driver assigned")

	return &AssignDriverResult{
		Trip:    trip,
		Driver:  driver,
		EventID: event.ID,
	}, nil
}
