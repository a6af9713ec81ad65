package memory

import (
	"context"
	"sort"
	"time"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

type eventRow struct {
	event domain.OutboxEvent
	seq   int64
}

// OutboxRepository is an in-memory implementation of repository.OutboxRepository.
type OutboxRepository struct {
	s  *Store
	tx *tables
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) get(id string) (*eventRow, bool) {
	if r.tx != nil {
		if row, ok := r.tx.events[id]; ok {
			return row, true
		}
	}
	row, ok := r.s.data.events[id]
	return row, ok
}

func (r *OutboxRepository) put(id string, row *eventRow) {
	if r.tx != nil {
		r.tx.events[id] = row
		return
	}
	r.s.data.events[id] = row
}

// rows returns the committed rows overlaid with the staged ones, in insertion order.
func (r *OutboxRepository) rows() []*eventRow {
	merged := make(map[string]*eventRow, len(r.s.data.events))
	for id, row := range r.s.data.events {
		merged[id] = row
	}
	if r.tx != nil {
		for id, row := range r.tx.events {
			merged[id] = row
		}
	}

	out := make([]*eventRow, 0, len(merged))
	for _, row := range merged {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].event.CreatedAt.Equal(out[j].event.CreatedAt) {
			return out[i].event.CreatedAt.Before(out[j].event.CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Append stores a new event.
func (r *OutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	defer r.s.lock(true)()

	r.s.acquireRow(r.tx, "event/"+event.ID)
	if _, ok := r.get(event.ID); ok {
		return repository.ErrDuplicate
	}
	r.put(event.ID, &eventRow{event: cloneEvent(*event), seq: r.s.nextSeq()})
	return nil
}

// ClaimDue returns due PENDING events, oldest first. Inside a transaction the
// returned rows are locked to it and rows locked by others are skipped.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	defer r.s.lock(true)()

	var out []*domain.OutboxEvent
	for _, row := range r.rows() {
		if len(out) >= limit {
			break
		}
		rowKey := "event/" + row.event.ID
		if !row.event.IsDue(now) || r.s.lockedByOther(r.tx, rowKey) {
			continue
		}
		if r.tx != nil {
			r.s.rowLocks[rowKey] = r.tx
		}
		ev := cloneEvent(row.event)
		out = append(out, &ev)
	}
	return out, nil
}

// Update persists the delivery state of an event.
func (r *OutboxRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	defer r.s.lock(true)()

	r.s.acquireRow(r.tx, "event/"+event.ID)
	row, ok := r.get(event.ID)
	if !ok {
		return repository.ErrNotFound
	}
	r.put(event.ID, &eventRow{event: cloneEvent(*event), seq: row.seq})
	return nil
}

// ListByStatus returns the tenant's events in status, newest first.
func (r *OutboxRepository) ListByStatus(ctx context.Context, tenantID string, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	defer r.s.lock(false)()

	rows := r.rows()
	var out []*domain.OutboxEvent
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		ev := rows[i].event
		if ev.TenantID == tenantID && ev.Status == status {
			c := cloneEvent(ev)
			out = append(out, &c)
		}
	}
	return out, nil
}

// CountByStatus returns the number of events per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error) {
	defer r.s.lock(false)()

	counts := make(map[domain.OutboxStatus]int)
	for _, row := range r.rows() {
		counts[row.event.Status]++
	}
	return counts, nil
}

func cloneEvent(e domain.OutboxEvent) domain.OutboxEvent {
	e.Payload = append([]byte(nil), e.Payload...)
	e.SentAt = cloneTime(e.SentAt)
	e.FailedAt = cloneTime(e.FailedAt)
	return e
}
