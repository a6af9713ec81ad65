package tests

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/outbox"
	"tripcore/internal/service"
)

// ──────────────────────────────────────────────
// 4. TRIP LIFECYCLE THROUGH THE OUTBOX
// ──────────────────────────────────────────────

func newPublisher(w *world, d outbox.Dispatcher) *outbox.Publisher {
	return outbox.NewPublisher(w.tx, d, outbox.DefaultConfig(), w.clock, zerolog.Nop(), nil)
}

func driveTripToCompletion(t *testing.T, ctx context.Context, w *world) *domain.Trip {
	t.Helper()
	svc := w.tripService()
	trip := requestTrip(t, ctx, svc)

	w.addDriver("acme", "driver-1")
	if _, err := w.coordinator().AssignDriver(ctx, service.AssignDriverRequest{TripID: trip.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	w.clock.Advance(time.Minute)
	if _, err := svc.StartTrip(ctx, trip.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.clock.Advance(20 * time.Minute)
	completed, err := svc.CompleteTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return completed
}

func TestTripLifecycle_EventsPublishedInOrder(t *testing.T) {
	w := newWorld()
	ctx := bind(t, "acme")
	trip := driveTripToCompletion(t, ctx, w)

	if trip.Status != domain.TripStatusCompleted || trip.Version != 3 {
		t.Errorf("trip = %s v%d, want COMPLETED v3", trip.Status, trip.Version)
	}
	if d := w.drivers.GetDriver("acme", "driver-1"); d.CurrentTripID != "" {
		t.Errorf("driver still carries %q", d.CurrentTripID)
	}

	dispatcher := NewMockDispatcher()
	publisher := newPublisher(w, dispatcher)

	result, err := publisher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Claimed != 4 || result.Sent != 4 {
		t.Errorf("result = %+v, want 4 claimed and sent", result)
	}

	want := []string{
		domain.EventTripRequested,
		domain.EventDriverAssigned,
		domain.EventTripStarted,
		domain.EventTripCompleted,
	}
	delivered := dispatcher.Delivered()
	if len(delivered) != len(want) {
		t.Fatalf("delivered %d events, want %d", len(delivered), len(want))
	}
	for i, env := range delivered {
		if env.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, env.EventType, want[i])
		}
		if env.AggregateID != trip.ID || env.TenantID != "acme" {
			t.Errorf("event %d = %+v", i, env)
		}
	}
	for i, bound := range dispatcher.Tenants() {
		if bound != "acme" {
			t.Errorf("event %d dispatched under tenant %q", i, bound)
		}
	}

	// Everything is SENT; a second batch finds nothing.
	result, err = publisher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if result.Claimed != 0 {
		t.Errorf("second batch claimed %d", result.Claimed)
	}
	for _, ev := range w.events.Events() {
		if ev.Status != domain.OutboxStatusSent || ev.SentAt == nil {
			t.Errorf("event %s status %s sent_at %v", ev.EventType, ev.Status, ev.SentAt)
		}
	}
}

func TestTripLifecycle_FailingEventTypeRetriesIndependently(t *testing.T) {
	w := newWorld()
	ctx := bind(t, "acme")
	driveTripToCompletion(t, ctx, w)

	dispatcher := NewMockDispatcher()
	dispatcher.FailTypes[domain.EventTripStarted] = errors.New("consumer rejected")
	publisher := newPublisher(w, dispatcher)

	result, err := publisher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Sent != 3 || result.Retried != 1 {
		t.Errorf("result = %+v, want 3 sent 1 retried", result)
	}

	for _, ev := range w.events.Events() {
		if ev.EventType != domain.EventTripStarted {
			continue
		}
		if ev.Status != domain.OutboxStatusPending || ev.Attempts != 1 {
			t.Errorf("started event = %s attempts %d, want PENDING 1", ev.Status, ev.Attempts)
		}
		if !ev.NextAttemptAt.After(w.clock.Now()) {
			t.Errorf("next attempt %v not after now %v", ev.NextAttemptAt, w.clock.Now())
		}
		if ev.LastError == "" {
			t.Error("last error not recorded")
		}
	}

	// Not due yet.
	result, _ = publisher.RunOnce(context.Background())
	if result.Claimed != 0 {
		t.Errorf("claimed %d before backoff elapsed", result.Claimed)
	}

	delete(dispatcher.FailTypes, domain.EventTripStarted)
	w.clock.Advance(time.Minute)

	result, err = publisher.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce after backoff: %v", err)
	}
	if result.Sent != 1 {
		t.Errorf("result = %+v, want the retried event sent", result)
	}
}

// ──────────────────────────────────────────────
// 5. CANCELLATION
// ──────────────────────────────────────────────

func TestTripLifecycle_LateCancellationAfterAssignment(t *testing.T) {
	w := newWorld()
	ctx := bind(t, "acme")
	svc := w.tripService()
	trip := requestTrip(t, ctx, svc)
	w.addDriver("acme", "driver-1")

	if _, err := w.coordinator().AssignDriver(ctx, service.AssignDriverRequest{TripID: trip.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Exactly at the grace boundary the cancellation is still free.
	w.clock.Advance(2 * time.Minute)
	fee, err := svc.QuoteCancellationFee(ctx, trip.ID, domain.ActorPassenger)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if fee.Charged {
		t.Errorf("fee at boundary = %+v, want free", fee)
	}

	w.clock.Advance(time.Second)
	result, err := svc.CancelTrip(ctx, service.CancelTripRequest{TripID: trip.ID, Actor: domain.ActorPassenger, Reason: "took too long"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !result.Fee.Charged || result.Fee.Fee.Amount != 800 || result.Fee.Fee.Currency != "EUR" {
		t.Errorf("fee = %+v, want 8.00 EUR", result.Fee)
	}
	if result.ReleasedDriver != "driver-1" {
		t.Errorf("released driver = %q, want driver-1", result.ReleasedDriver)
	}
	if d := w.drivers.GetDriver("acme", "driver-1"); d.CurrentTripID != "" {
		t.Errorf("driver still carries %q", d.CurrentTripID)
	}

	var payload domain.TripCancelledPayload
	for _, ev := range w.events.Events() {
		if ev.EventType == domain.EventTripCancelled {
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
		}
	}
	if !payload.FeeCharged || payload.FeeAmount != 800 || payload.PreviousStatus != domain.TripStatusDriverAssigned {
		t.Errorf("cancelled payload = %+v", payload)
	}

	// The released driver can take the next trip.
	next := requestTrip(t, ctx, svc)
	if _, err := w.coordinator().AssignDriver(ctx, service.AssignDriverRequest{TripID: next.ID, DriverID: "driver-1"}); err != nil {
		t.Errorf("assign released driver: %v", err)
	}
}

func TestTripLifecycle_TenantsAreIsolated(t *testing.T) {
	w := newWorld()
	acme := bind(t, "acme")
	globex := bind(t, "globex")
	svc := w.tripService()

	trip := requestTrip(t, acme, svc)
	w.addDriver("globex", "driver-1")

	if _, err := svc.GetTrip(globex, trip.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant get err = %v, want not found", err)
	}
	if _, err := svc.CancelTrip(globex, service.CancelTripRequest{TripID: trip.ID, Actor: domain.ActorSystem}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant cancel err = %v, want not found", err)
	}
	// The acme trip cannot be claimed by a globex driver, from either side.
	if _, err := w.coordinator().AssignDriver(acme, service.AssignDriverRequest{TripID: trip.ID, DriverID: "driver-1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant assign err = %v, want not found", err)
	}
	if _, err := w.coordinator().AssignDriver(globex, service.AssignDriverRequest{TripID: trip.ID, DriverID: "driver-1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant assign err = %v, want not found", err)
	}

	if stored := w.trips.GetTrip("acme", trip.ID); stored.Status != domain.TripStatusRequested {
		t.Errorf("acme trip status = %s, want REQUESTED", stored.Status)
	}
}
