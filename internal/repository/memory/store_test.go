package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedTrip(t *testing.T, repos repository.Repositories, tenantID, id string) *domain.Trip {
	t.Helper()
	trip, err := domain.NewTrip(id, tenantID, "passenger-1", domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 2, Lng: 2}, "EUR", t0)
	if err != nil {
		t.Fatalf("new trip: %v", err)
	}
	if err := repos.Trips.Insert(context.Background(), trip); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return trip
}

func TestTripRepository_InsertAndFind(t *testing.T) {
	t.Parallel()

	store := NewStore()
	repos := store.Repositories()
	seedTrip(t, repos, "acme", "trip-1")

	if err := repos.Trips.Insert(context.Background(), &domain.Trip{ID: "trip-1", TenantID: "acme"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	got, err := repos.Trips.FindByID(context.Background(), "acme", "trip-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.TripStatusRequested || got.Version != 0 {
		t.Errorf("unexpected trip: %+v", got)
	}

	_, err = repos.Trips.FindByID(context.Background(), "other", "trip-1")
	if !errors.Is(err, repository.ErrNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found across tenants, got %v", err)
	}
}

func TestTripRepository_SaveCompareAndSet(t *testing.T) {
	t.Parallel()

	store := NewStore()
	repos := store.Repositories()
	seedTrip(t, repos, "acme", "trip-1")
	ctx := context.Background()

	first, _ := repos.Trips.FindByID(ctx, "acme", "trip-1")
	second, _ := repos.Trips.FindByID(ctx, "acme", "trip-1")

	if err := first.AssignDriver("driver-1", t0); err != nil {
		t.Fatalf("assign: %v", err)
	}
	outcome, err := repos.Trips.Save(ctx, first, 0)
	if err != nil || outcome != repository.Saved {
		t.Fatalf("expected saved, got %v %v", outcome, err)
	}
	if first.Version != 1 {
		t.Errorf("expected version 1, got %d", first.Version)
	}

	if err := second.AssignDriver("driver-2", t0); err != nil {
		t.Fatalf("assign: %v", err)
	}
	outcome, err = repos.Trips.Save(ctx, second, 0)
	if err != nil || outcome != repository.Conflict {
		t.Fatalf("expected conflict, got %v %v", outcome, err)
	}

	stored, _ := repos.Trips.FindByID(ctx, "acme", "trip-1")
	if stored.DriverID != "driver-1" || stored.Version != 1 {
		t.Errorf("expected first writer to win, got %+v", stored)
	}

	if _, err := repos.Trips.Save(ctx, &domain.Trip{ID: "missing", TenantID: "acme"}, 0); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTripRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewStore()
	repos := store.Repositories()
	seedTrip(t, repos, "acme", "trip-1")

	got, _ := repos.Trips.FindByID(context.Background(), "acme", "trip-1")
	got.Status = domain.TripStatusCompleted

	again, _ := repos.Trips.FindByID(context.Background(), "acme", "trip-1")
	if again.Status != domain.TripStatusRequested {
		t.Error("mutating a loaded trip must not change the store")
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	seedTrip(t, store.Repositories(), "acme", "trip-1")
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.FindByID(ctx, "acme", "trip-1")
		if err != nil {
			return err
		}
		if err := trip.AssignDriver("driver-1", t0); err != nil {
			return err
		}
		if _, err := repos.Trips.Save(ctx, trip, trip.Version); err != nil {
			return err
		}

		// Staged writes are visible inside the transaction.
		staged, _ := repos.Trips.FindByID(ctx, "acme", "trip-1")
		if staged.Version != 1 {
			t.Errorf("expected staged version 1, got %d", staged.Version)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	trip, _ := store.Repositories().Trips.FindByID(context.Background(), "acme", "trip-1")
	if trip.Version != 0 || trip.DriverID != "" {
		t.Errorf("expected rollback, got %+v", trip)
	}
}

func TestStore_WithinTxRollsBackOnPanic(t *testing.T) {
	t.Parallel()

	store := NewStore()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		_ = store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
			seedTrip(t, repos, "acme", "trip-1")
			panic("boom")
		})
	}()

	if _, err := store.Repositories().Trips.FindByID(context.Background(), "acme", "trip-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected no trip after panic, got %v", err)
	}
}

func TestStore_ConcurrentSavesOneWinner(t *testing.T) {
	t.Parallel()

	store := NewStore()
	seedTrip(t, store.Repositories(), "acme", "trip-1")

	const n = 32
	var saved, conflicts int32
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trip := &domain.Trip{ID: "trip-1", TenantID: "acme", Status: domain.TripStatusDriverAssigned}
			outcome, err := store.Repositories().Trips.Save(context.Background(), trip, 0)
			if err != nil {
				t.Errorf("save: %v", err)
				return
			}
			if outcome == repository.Saved {
				atomic.AddInt32(&saved, 1)
			} else {
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	if saved != 1 || conflicts != n-1 {
		t.Errorf("expected 1 saved and %d conflicts, got %d and %d", n-1, saved, conflicts)
	}
}

func TestOutboxRepository_ClaimDue(t *testing.T) {
	t.Parallel()

	store := NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		ev, err := domain.NewOutboxEvent("acme", domain.AggregateTrip, "trip-1", domain.EventTripRequested, nil, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		if err := repos.Outbox.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, ev.ID)
	}

	// Push the first event into the future and retire the second.
	first, _ := repos.Outbox.ClaimDue(ctx, t0.Add(time.Hour), 1)
	first[0].NextAttemptAt = t0.Add(2 * time.Hour)
	if err := repos.Outbox.Update(ctx, first[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	due, _ := repos.Outbox.ClaimDue(ctx, t0.Add(time.Hour), 1)
	if err := due[0].MarkSent(t0); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repos.Outbox.Update(ctx, due[0]); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repos.Outbox.ClaimDue(ctx, t0.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[3] {
		t.Fatalf("expected events 2 and 3 in order, got %d events", len(got))
	}

	counts, _ := repos.Outbox.CountByStatus(ctx)
	if counts[domain.OutboxStatusPending] != 3 || counts[domain.OutboxStatusSent] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	sent, _ := repos.Outbox.ListByStatus(ctx, "acme", domain.OutboxStatusSent, 10)
	if len(sent) != 1 || sent[0].ID != ids[1] {
		t.Errorf("expected sent event %s, got %v", ids[1], sent)
	}
	none, _ := repos.Outbox.ListByStatus(ctx, "other", domain.OutboxStatusPending, 10)
	if len(none) != 0 {
		t.Errorf("expected no events for another tenant, got %d", len(none))
	}
}

func TestStore_ClaimedEventsSkippedWithoutBlockingReads(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedTrip(t, store.Repositories(), "acme", "trip-1")
	for i := 0; i < 2; i++ {
		ev, err := domain.NewOutboxEvent("acme", domain.AggregateTrip, "trip-1", domain.EventTripRequested, nil, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		if err := store.Repositories().Outbox.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	claimed := make(chan string, 1)
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			events, err := repos.Outbox.ClaimDue(ctx, t0.Add(time.Hour), 1)
			if err != nil || len(events) != 1 {
				claimed <- ""
				return errors.New("claim failed")
			}
			claimed <- events[0].ID
			<-release
			return nil
		})
	}()

	held := <-claimed
	if held == "" {
		t.Fatal("first transaction claimed nothing")
	}

	readDone := make(chan error, 1)
	go func() {
		_, err := store.Repositories().Trips.FindByID(ctx, "acme", "trip-1")
		readDone <- err
	}()
	select {
	case err := <-readDone:
		if err != nil {
			t.Fatalf("find trip: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read blocked while another transaction holds claimed events")
	}

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		events, err := repos.Outbox.ClaimDue(ctx, t0.Add(time.Hour), 10)
		if err != nil {
			return err
		}
		if len(events) != 1 || events[0].ID == held {
			t.Errorf("expected only the unclaimed event, got %d events", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second transaction: %v", err)
	}

	close(release)
	if err := <-txDone; err != nil {
		t.Fatalf("first transaction: %v", err)
	}

	due, _ := store.Repositories().Outbox.ClaimDue(ctx, t0.Add(time.Hour), 10)
	if len(due) != 2 {
		t.Errorf("expected both events claimable after commit, got %d", len(due))
	}
}

func TestStore_TxRowWriteWaitsForCommit(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	seedTrip(t, store.Repositories(), "acme", "trip-1")

	saved := make(chan struct{})
	commit := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			trip := &domain.Trip{ID: "trip-1", TenantID: "acme", Status: domain.TripStatusDriverAssigned}
			if _, err := repos.Trips.Save(ctx, trip, 0); err != nil {
				return err
			}
			close(saved)
			<-commit
			return nil
		})
	}()
	<-saved

	type result struct {
		outcome repository.SaveOutcome
		err     error
	}
	rival := make(chan result, 1)
	go func() {
		trip := &domain.Trip{ID: "trip-1", TenantID: "acme", Status: domain.TripStatusCancelled}
		outcome, err := store.Repositories().Trips.Save(ctx, trip, 0)
		rival <- result{outcome, err}
	}()

	select {
	case <-rival:
		t.Fatal("rival save finished while the row was held by an open transaction")
	case <-time.After(50 * time.Millisecond):
	}

	close(commit)
	if err := <-txDone; err != nil {
		t.Fatalf("transaction: %v", err)
	}
	got := <-rival
	if got.err != nil || got.outcome != repository.Conflict {
		t.Errorf("expected conflict after commit, got %v, %v", got.outcome, got.err)
	}
}
