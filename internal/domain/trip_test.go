package domain

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRequestedTrip(t *testing.T) *Trip {
	t.Helper()
	trip, err := NewTrip("trip-1", "acme", "passenger-1", Point{Lat: 52.52, Lng: 13.40}, Point{Lat: 52.50, Lng: 13.45}, "eur", t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return trip
}

func TestNewTrip_Requested(t *testing.T) {
	t.Parallel()

	trip := newRequestedTrip(t)

	if trip.Status != TripStatusRequested {
		t.Errorf("expected status %s, got %s", TripStatusRequested, trip.Status)
	}
	if trip.Currency != "EUR" {
		t.Errorf("expected currency EUR, got %s", trip.Currency)
	}
	if trip.DriverID != "" || trip.AssignedAt != nil {
		t.Error("expected no driver on a new trip")
	}
	if trip.Version != 0 {
		t.Errorf("expected version 0, got %d", trip.Version)
	}
}

func TestNewTrip_Validation(t *testing.T) {
	t.Parallel()

	ok := Point{Lat: 1, Lng: 1}
	tests := []struct {
		name      string
		id        string
		passenger string
		origin    Point
		currency  string
	}{
		{"empty id", "", "p", ok, "EUR"},
		{"empty passenger", "t", "", ok, "EUR"},
		{"bad latitude", "t", "p", Point{Lat: 91, Lng: 0}, "EUR"},
		{"bad longitude", "t", "p", Point{Lat: 0, Lng: -181}, "EUR"},
		{"bad currency", "t", "p", ok, "EURO"},
		{"multi-byte currency", "t", "p", ok, "€"},
		{"currency with digits", "t", "p", ok, "12 "},
		{"short currency", "t", "p", ok, "EU"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrip(tt.id, "acme", tt.passenger, tt.origin, ok, tt.currency, t0)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestTrip_HappyPath(t *testing.T) {
	t.Parallel()

	trip := newRequestedTrip(t)

	if err := trip.AssignDriver("driver-1", t0.Add(time.Minute)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if trip.Status != TripStatusDriverAssigned || trip.DriverID != "driver-1" {
		t.Fatalf("unexpected trip after assign: %+v", trip)
	}
	if trip.AssignedAt == nil || !trip.AssignedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("expected AssignedAt stamped")
	}

	if err := trip.Start(t0.Add(5 * time.Minute)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if trip.Status != TripStatusInProgress || trip.StartedAt == nil {
		t.Fatalf("unexpected trip after start: %+v", trip)
	}

	if err := trip.Complete(t0.Add(30 * time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if trip.Status != TripStatusCompleted || trip.CompletedAt == nil {
		t.Fatalf("unexpected trip after complete: %+v", trip)
	}

	// Earlier timestamps survive later transitions.
	if trip.AssignedAt == nil || trip.StartedAt == nil {
		t.Error("expected earlier timestamps to be kept")
	}
	if trip.DriverID != "driver-1" {
		t.Errorf("expected driver kept on completed trip, got %q", trip.DriverID)
	}
}

func TestTrip_GuardsRejectInvalidTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status TripStatus
		op     func(*Trip) error
	}{
		{"assign in progress", TripStatusInProgress, func(tr *Trip) error { return tr.AssignDriver("d", t0) }},
		{"assign twice", TripStatusDriverAssigned, func(tr *Trip) error { return tr.AssignDriver("d", t0) }},
		{"start requested", TripStatusRequested, func(tr *Trip) error { return tr.Start(t0) }},
		{"start completed", TripStatusCompleted, func(tr *Trip) error { return tr.Start(t0) }},
		{"complete assigned", TripStatusDriverAssigned, func(tr *Trip) error { return tr.Complete(t0) }},
		{"complete cancelled", TripStatusCancelled, func(tr *Trip) error { return tr.Complete(t0) }},
		{"cancel in progress", TripStatusInProgress, func(tr *Trip) error {
			_, err := tr.Cancel(ActorPassenger, "", t0)
			return err
		}},
		{"cancel completed", TripStatusCompleted, func(tr *Trip) error {
			_, err := tr.Cancel(ActorPassenger, "", t0)
			return err
		}},
		{"cancel cancelled", TripStatusCancelled, func(tr *Trip) error {
			_, err := tr.Cancel(ActorPassenger, "", t0)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := &Trip{ID: "trip-1", Status: tt.status, DriverID: "driver-9"}
			before := *trip

			err := tt.op(trip)
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
			var stateErr *InvalidStateError
			if !errors.As(err, &stateErr) || stateErr.Status != string(tt.status) {
				t.Errorf("expected InvalidStateError with status %s, got %v", tt.status, err)
			}
			if trip.Status != before.Status || trip.DriverID != before.DriverID {
				t.Errorf("expected trip unchanged on failure, got %+v", trip)
			}
		})
	}
}

func TestTrip_CancelReleasesDriver(t *testing.T) {
	t.Parallel()

	trip := newRequestedTrip(t)
	if err := trip.AssignDriver("driver-1", t0); err != nil {
		t.Fatalf("assign: %v", err)
	}

	released, err := trip.Cancel(ActorPassenger, "changed plans", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if released != "driver-1" {
		t.Errorf("expected released driver-1, got %q", released)
	}
	if trip.DriverID != "" {
		t.Errorf("expected driver cleared, got %q", trip.DriverID)
	}
	if trip.Status != TripStatusCancelled || trip.CancelledBy != ActorPassenger || trip.CancelledAt == nil {
		t.Errorf("unexpected cancelled trip: %+v", trip)
	}
	if trip.AssignedAt == nil {
		t.Error("expected AssignedAt kept after cancel")
	}
}

func TestTrip_CancelRequestedReleasesNobody(t *testing.T) {
	t.Parallel()

	trip := newRequestedTrip(t)
	released, err := trip.Cancel(ActorSystem, "", t0)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if released != "" {
		t.Errorf("expected no released driver, got %q", released)
	}
}

func TestParseActor(t *testing.T) {
	t.Parallel()

	if a, err := ParseActor(" driver "); err != nil || a != ActorDriver {
		t.Errorf("expected DRIVER, got %q %v", a, err)
	}
	if _, err := ParseActor("robot"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
