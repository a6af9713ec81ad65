package domain

import "time"

// Event type tags recorded on outbox events.
const (
	EventTripRequested  = "TripRequested"
	EventDriverAssigned = "DriverAssigned"
	EventTripStarted    = "TripStarted"
	EventTripCompleted  = "TripCompleted"
	EventTripCancelled  = "TripCancelled"
)

// TripRequestedPayload is published when a passenger requests a trip.
type TripRequestedPayload struct {
	TripID      string    `json:"trip_id"`
	PassengerID string    `json:"passenger_id"`
	Origin      Point     `json:"origin"`
	Destination Point     `json:"destination"`
	RequestedAt time.Time `json:"requested_at"`
}

// DriverAssignedPayload is published when a driver claims a trip.
type DriverAssignedPayload struct {
	TripID           string    `json:"trip_id"`
	DriverID         string    `json:"driver_id"`
	PassengerID      string    `json:"passenger_id"`
	PickupDistanceKm float64   `json:"pickup_distance_km"`
	AssignedAt       time.Time `json:"assigned_at"`
	Version          int64     `json:"version"`
}

// TripStartedPayload is published when a trip enters IN_PROGRESS.
type TripStartedPayload struct {
	TripID    string    `json:"trip_id"`
	DriverID  string    `json:"driver_id"`
	StartedAt time.Time `json:"started_at"`
}

// TripCompletedPayload is published when a trip completes.
type TripCompletedPayload struct {
	TripID      string    `json:"trip_id"`
	DriverID    string    `json:"driver_id"`
	PassengerID string    `json:"passenger_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// TripCancelledPayload is published when a trip is cancelled.
type TripCancelledPayload struct {
	TripID         string     `json:"trip_id"`
	PassengerID    string     `json:"passenger_id"`
	ReleasedDriver string     `json:"released_driver_id,omitempty"`
	CancelledBy    Actor      `json:"cancelled_by"`
	Reason         string     `json:"reason,omitempty"`
	FeeCharged     bool       `json:"fee_charged"`
	FeeAmount      int64      `json:"fee_amount"`
	FeeCurrency    string     `json:"fee_currency"`
	CancelledAt    time.Time  `json:"cancelled_at"`
	PreviousStatus TripStatus `json:"previous_status"`
}
