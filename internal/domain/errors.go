package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core matches exactly one of these
// through errors.Is, so callers can branch on the kind without knowing the
// concrete error.
var (
	// ErrValidation marks malformed input rejected before any state is touched.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity that does not exist for the tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks a state machine guard violation.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict marks a lost optimistic concurrency race.
	ErrConflict = errors.New("conflict")

	// ErrIneligible marks a driver that fails the eligibility predicate.
	ErrIneligible = errors.New("driver ineligible")

	// ErrTransport marks a failed dispatcher call. It never leaves the outbox publisher.
	ErrTransport = errors.New("transport error")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidStateError is returned when an operation is not allowed from the
// entity's current status.
type InvalidStateError struct {
	Entity string
	Op     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Op, e.Entity, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// IneligibilityReason says why a driver cannot take a trip.
type IneligibilityReason string

const (
	ReasonNotActive      IneligibilityReason = "driver not active"
	ReasonNoLocation     IneligibilityReason = "driver location unknown"
	ReasonLicenseExpired IneligibilityReason = "driver license expired"
	ReasonBusy           IneligibilityReason = "driver already carrying a trip"
)

// IneligibleError is returned when a driver fails the eligibility predicate.
type IneligibleError struct {
	DriverID string
	Reason   IneligibilityReason
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("driver %s ineligible: %s", e.DriverID, e.Reason)
}

func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligible
}

// TransportError wraps a dispatcher failure.
type TransportError struct {
	EventID string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch event %s: %v", e.EventID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
