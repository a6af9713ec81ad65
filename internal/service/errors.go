package service

import (
	"errors"
	"fmt"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

var (
	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID error = &domain.ValidationError{Field: "trip_id", Reason: "must not be empty"}

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID error = &domain.ValidationError{Field: "driver_id", Reason: "must not be empty"}

	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID error = &domain.ValidationError{Field: "passenger_id", Reason: "must not be empty"}

	// ErrInvalidRadius is returned when a search radius is not positive.
	ErrInvalidRadius error = &domain.ValidationError{Field: "radius_km", Reason: "must be positive"}

	// ErrTripNotFound is returned when the trip does not exist for the tenant.
	ErrTripNotFound = fmt.Errorf("trip %w", domain.ErrNotFound)

	// ErrDriverNotFound is returned when the driver does not exist for the tenant.
	ErrDriverNotFound = fmt.Errorf("driver %w", domain.ErrNotFound)

	// ErrTripAlreadyClaimed is returned when another assignment won the race for the trip.
	ErrTripAlreadyClaimed = fmt.Errorf("trip already claimed: %w", domain.ErrConflict)

	// ErrDriverStateChanged is returned when the driver changed between load and save.
	ErrDriverStateChanged = fmt.Errorf("driver state changed concurrently: %w", domain.ErrConflict)

	// ErrTripModified is returned when the trip changed between load and save.
	ErrTripModified = fmt.Errorf("trip modified concurrently: %w", domain.ErrConflict)

	// ErrDriverExists is returned when registering a driver id twice.
	ErrDriverExists = fmt.Errorf("driver already exists: %w", domain.ErrConflict)

	// ErrNoDriverAvailable is returned when no nearby driver could take the trip.
	ErrNoDriverAvailable = fmt.Errorf("no driver available: %w", domain.ErrNotFound)

	// ErrFeeUndefined is returned when no cancellation fee rule covers the trip status.
	ErrFeeUndefined = fmt.Errorf("cancellation fee undefined: %w", domain.ErrInvalidState)
)

// notFound translates a repository miss into the entity-specific error.
func notFound(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
