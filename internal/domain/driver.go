package domain

import "time"

// DriverStatus represents the activation status of a driver.
type DriverStatus string

const (
	DriverStatusActive    DriverStatus = "ACTIVE"
	DriverStatusInactive  DriverStatus = "INACTIVE"
	DriverStatusSuspended DriverStatus = "SUSPENDED"
)

// Valid reports whether s is one of the known statuses.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusActive, DriverStatusInactive, DriverStatusSuspended:
		return true
	}
	return false
}

// Driver represents a driver in the system.
type Driver struct {
	ID                string
	TenantID          string
	Name              string
	Status            DriverStatus
	Location          *Point
	LocationUpdatedAt *time.Time
	LicenseExpiresAt  time.Time
	CurrentTripID     string
	Version           int64
}

// CheckEligibility reports whether the driver can be assigned a trip at now.
func (d *Driver) CheckEligibility(now time.Time) error {
	var reason IneligibilityReason
	switch {
	case d.Status != DriverStatusActive:
		reason = ReasonNotActive
	case d.Location == nil:
		reason = ReasonNoLocation
	case !now.Before(d.LicenseExpiresAt):
		reason = ReasonLicenseExpired
	case d.CurrentTripID != "":
		reason = ReasonBusy
	default:
		return nil
	}
	return &IneligibleError{DriverID: d.ID, Reason: reason}
}

// AttachTrip marks the driver as carrying tripID.
func (d *Driver) AttachTrip(tripID string) error {
	if d.CurrentTripID != "" && d.CurrentTripID != tripID {
		return &IneligibleError{DriverID: d.ID, Reason: ReasonBusy}
	}
	d.CurrentTripID = tripID
	return nil
}

// ReleaseTrip clears the current trip if it is tripID. It reports whether the
// driver changed.
func (d *Driver) ReleaseTrip(tripID string) bool {
	if d.CurrentTripID == "" || d.CurrentTripID != tripID {
		return false
	}
	d.CurrentTripID = ""
	return true
}

// MoveTo records the driver's last known location.
func (d *Driver) MoveTo(p Point, now time.Time) error {
	if err := p.Validate("location"); err != nil {
		return err
	}
	loc := p
	d.Location = &loc
	d.LocationUpdatedAt = stamp(now)
	return nil
}
