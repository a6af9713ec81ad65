package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

// TripService handles the trip lifecycle outside of assignment. Every write
// saves the trip against the version it was loaded at and records the
// matching outbox event in the same transaction.
type TripService struct {
	repos  repository.Repositories
	tx     repository.Transactor
	clock  clockwork.Clock
	policy CancellationPolicy
	logger zerolog.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	repos repository.Repositories,
	tx repository.Transactor,
	clock clockwork.Clock,
	policy CancellationPolicy,
	logger zerolog.Logger,
) *TripService {
	return &TripService{
		repos:  repos,
		tx:     tx,
		clock:  clock,
		policy: policy,
		logger: logger.With().Str("component", "trips").Logger(),
	}
}

// RequestTripRequest contains the parameters for requesting a trip.
type RequestTripRequest struct {
	PassengerID string
	Origin      domain.Point
	Destination domain.Point
	Currency    string
}

// RequestTrip creates a trip in REQUESTED status.
func (s *TripService) RequestTrip(ctx context.Context, req RequestTripRequest) (*domain.Trip, error) {
	if strings.TrimSpace(req.PassengerID) == "" {
		return nil, ErrInvalidPassengerID
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	trip, err := domain.NewTrip(uuid.New().String(), tenantID.String(), req.PassengerID, req.Origin, req.Destination, req.Currency, now)
	if err != nil {
		return nil, err
	}

	event, err := newTripEvent(ctx, trip, domain.EventTripRequested, domain.TripRequestedPayload{
		TripID:      trip.ID,
		PassengerID: trip.PassengerID,
		Origin:      trip.Origin,
		Destination: trip.Destination,
		RequestedAt: now,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Trips.Insert(ctx, trip); err != nil {
			return err
		}
		return repos.Outbox.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", trip.TenantID).
		Str("trip_id", trip.ID).
		Str("passenger_id", trip.PassengerID).
		Msg("trip requested")

	return trip, nil
}

// GetTrip retrieves a trip of the bound tenant.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	trip, err := s.repos.Trips.FindByID(ctx, tenantID.String(), tripID)
	if err != nil {
		return nil, notFound(err, ErrTripNotFound)
	}
	return trip, nil
}

// StartTrip moves an assigned trip into progress.
func (s *TripService) StartTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	version := trip.Version
	now := s.clock.Now()
	if err := trip.Start(now); err != nil {
		return nil, err
	}

	event, err := newTripEvent(ctx, trip, domain.EventTripStarted, domain.TripStartedPayload{
		TripID:    trip.ID,
		DriverID:  trip.DriverID,
		StartedAt: now,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := saveTrip(ctx, repos, trip, version); err != nil {
			return err
		}
		return repos.Outbox.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("tenant_id", trip.TenantID).Str("trip_id", trip.ID).Msg("trip started")
	return trip, nil
}

// CompleteTrip finishes a trip in progress and frees its driver.
func (s *TripService) CompleteTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	version := trip.Version
	now := s.clock.Now()
	if err := trip.Complete(now); err != nil {
		return nil, err
	}

	driver, err := s.repos.Drivers.FindByID(ctx, trip.TenantID, trip.DriverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	driverVersion := driver.Version
	released := driver.ReleaseTrip(trip.ID)

	event, err := newTripEvent(ctx, trip, domain.EventTripCompleted, domain.TripCompletedPayload{
		TripID:      trip.ID,
		DriverID:    trip.DriverID,
		PassengerID: trip.PassengerID,
		CompletedAt: now,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := saveTrip(ctx, repos, trip, version); err != nil {
			return err
		}
		if released {
			if err := saveDriver(ctx, repos, driver, driverVersion); err != nil {
				return err
			}
		}
		return repos.Outbox.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", trip.TenantID).
		Str("trip_id", trip.ID).
		Str("driver_id", trip.DriverID).
		Msg("trip completed")

	return trip, nil
}

// CancelTripRequest contains the parameters for cancelling a trip.
type CancelTripRequest struct {
	TripID string
	Actor  domain.Actor
	Reason string
}

// CancelTripResult contains the cancelled trip and the fee owed.
type CancelTripResult struct {
	Trip           *domain.Trip
	Fee            domain.CancellationFee
	ReleasedDriver string
	EventID        string
}

// CancelTrip cancels a trip that has not started yet. The fee is computed
// from the trip as it was before the cancellation.
func (s *TripService) CancelTrip(ctx context.Context, req CancelTripRequest) (*CancelTripResult, error) {
	trip, err := s.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	version := trip.Version
	before := *trip
	now := s.clock.Now()

	released, err := trip.Cancel(req.Actor, req.Reason, now)
	if err != nil {
		return nil, err
	}

	fee, err := s.policy.Fee(&before, req.Actor, now)
	if err != nil {
		return nil, err
	}

	var (
		driver        *domain.Driver
		driverVersion int64
	)
	if released != "" {
		driver, err = s.repos.Drivers.FindByID(ctx, trip.TenantID, released)
		if err != nil {
			return nil, notFound(err, ErrDriverNotFound)
		}
		driverVersion = driver.Version
		if !driver.ReleaseTrip(trip.ID) {
			driver = nil
		}
	}

	event, err := newTripEvent(ctx, trip, domain.EventTripCancelled, domain.TripCancelledPayload{
		TripID:         trip.ID,
		PassengerID:    trip.PassengerID,
		ReleasedDriver: released,
		CancelledBy:    req.Actor,
		Reason:         req.Reason,
		FeeCharged:     fee.Charged,
		FeeAmount:      fee.Fee.Amount,
		FeeCurrency:    fee.Fee.Currency,
		CancelledAt:    now,
		PreviousStatus: before.Status,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := saveTrip(ctx, repos, trip, version); err != nil {
			return err
		}
		if driver != nil {
			if err := saveDriver(ctx, repos, driver, driverVersion); err != nil {
				return err
			}
		}
		return repos.Outbox.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", trip.TenantID).
		Str("trip_id", trip.ID).
		Str("cancelled_by", string(req.Actor)).
		Str("fee", fee.Fee.String()).
		Bool("fee_charged", fee.Charged).
		Msg("trip cancelled")

	return &CancelTripResult{
		Trip:           trip,
		Fee:            fee,
		ReleasedDriver: released,
		EventID:        event.ID,
	}, nil
}

// QuoteCancellationFee returns the fee actor would owe by cancelling now,
// without changing the trip.
func (s *TripService) QuoteCancellationFee(ctx context.Context, tripID string, actor domain.Actor) (domain.CancellationFee, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return domain.CancellationFee{}, err
	}
	return s.policy.Fee(trip, actor, s.clock.Now())
}

func saveTrip(ctx context.Context, repos repository.Repositories, trip *domain.Trip, expectedVersion int64) error {
	outcome, err := repos.Trips.Save(ctx, trip, expectedVersion)
	if err != nil {
		return err
	}
	if outcome == repository.Conflict {
		return ErrTripModified
	}
	return nil
}

func saveDriver(ctx context.Context, repos repository.Repositories, driver *domain.Driver, expectedVersion int64) error {
	outcome, err := repos.Drivers.Save(ctx, driver, expectedVersion)
	if err != nil {
		return err
	}
	if outcome == repository.Conflict {
		return ErrDriverStateChanged
	}
	return nil
}
