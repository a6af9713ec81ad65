package domain

import (
	"strings"
	"time"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested      TripStatus = "REQUESTED"
	TripStatusDriverAssigned TripStatus = "DRIVER_ASSIGNED"
	TripStatusInProgress     TripStatus = "IN_PROGRESS"
	TripStatusCompleted      TripStatus = "COMPLETED"
	TripStatusCancelled      TripStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusRequested, TripStatusDriverAssigned, TripStatusInProgress,
		TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s TripStatus) IsTerminal() bool {
	switch s {
	case TripStatusCompleted, TripStatusCancelled:
		return true
	case TripStatusRequested, TripStatusDriverAssigned, TripStatusInProgress:
		return false
	}
	return false
}

// Cancellable reports whether a trip in this status may still be cancelled.
func (s TripStatus) Cancellable() bool {
	switch s {
	case TripStatusRequested, TripStatusDriverAssigned:
		return true
	case TripStatusInProgress, TripStatusCompleted, TripStatusCancelled:
		return false
	}
	return false
}

// Actor identifies who initiated an operation.
type Actor string

const (
	ActorPassenger Actor = "PASSENGER"
	ActorDriver    Actor = "DRIVER"
	ActorSystem    Actor = "SYSTEM"
)

// ParseActor converts a case-insensitive string into an Actor.
func ParseActor(s string) (Actor, error) {
	switch a := Actor(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActorPassenger, ActorDriver, ActorSystem:
		return a, nil
	}
	return "", &ValidationError{Field: "actor", Reason: "must be PASSENGER, DRIVER or SYSTEM"}
}

// Trip is the aggregate owning a ride's lifecycle.
//
// DriverID is set iff Status is DRIVER_ASSIGNED, IN_PROGRESS or COMPLETED.
// Each timestamp is stamped when the trip enters the matching status and is
// never cleared afterwards. Version is owned by the repositories: it is the
// version the trip was loaded at and grows by one on every persisted change.
type Trip struct {
	ID           string
	TenantID     string
	PassengerID  string
	DriverID     string
	Origin       Point
	Destination  Point
	Currency     string
	Status       TripStatus
	CreatedAt    time.Time
	AssignedAt   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelledBy  Actor
	CancelReason string
	Version      int64
}

// NewTrip builds a trip in REQUESTED status.
func NewTrip(id, tenantID, passengerID string, origin, destination Point, currency string, now time.Time) (*Trip, error) {
	switch {
	case id == "":
		return nil, &ValidationError{Field: "trip_id", Reason: "must not be empty"}
	case tenantID == "":
		return nil, &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	case passengerID == "":
		return nil, &ValidationError{Field: "passenger_id", Reason: "must not be empty"}
	case !isCurrencyCode(currency):
		return nil, &ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	if err := origin.Validate("origin"); err != nil {
		return nil, err
	}
	if err := destination.Validate("destination"); err != nil {
		return nil, err
	}

	return &Trip{
		ID:          id,
		TenantID:    tenantID,
		PassengerID: passengerID,
		Origin:      origin,
		Destination: destination,
		Currency:    strings.ToUpper(currency),
		Status:      TripStatusRequested,
		CreatedAt:   now,
	}, nil
}

// AssignDriver binds a driver to a REQUESTED trip.
func (t *Trip) AssignDriver(driverID string, now time.Time) error {
	if driverID == "" {
		return &ValidationError{Field: "driver_id", Reason: "must not be empty"}
	}
	if t.Status != TripStatusRequested {
		return t.invalid("assign driver to")
	}

	t.DriverID = driverID
	t.AssignedAt = stamp(now)
	t.Status = TripStatusDriverAssigned
	return nil
}

// Start moves an assigned trip into progress.
func (t *Trip) Start(now time.Time) error {
	if t.Status != TripStatusDriverAssigned {
		return t.invalid("start")
	}

	t.StartedAt = stamp(now)
	t.Status = TripStatusInProgress
	return nil
}

// Complete finishes a trip in progress.
func (t *Trip) Complete(now time.Time) error {
	if t.Status != TripStatusInProgress {
		return t.invalid("complete")
	}

	t.CompletedAt = stamp(now)
	t.Status = TripStatusCompleted
	return nil
}

// Cancel exits the lifecycle before the trip starts. It returns the id of the
// driver released by the cancellation, or "" when none was assigned.
func (t *Trip) Cancel(actor Actor, reason string, now time.Time) (string, error) {
	if !t.Status.Cancellable() {
		return "", t.invalid("cancel")
	}

	released := t.DriverID
	t.DriverID = ""
	t.CancelledAt = stamp(now)
	t.CancelledBy = actor
	t.CancelReason = reason
	t.Status = TripStatusCancelled
	return released, nil
}

// isCurrencyCode reports whether s is three ASCII letters.
func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func (t *Trip) invalid(op string) error {
	return &InvalidStateError{Entity: "trip", Op: op, Status: string(t.Status)}
}

func stamp(now time.Time) *time.Time {
	ts := now
	return &ts
}
