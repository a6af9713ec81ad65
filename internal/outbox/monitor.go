package outbox

import (
	"context"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Monitor exposes the outbox state to operators.
type Monitor struct {
	events  repository.OutboxRepository
	metrics MetricsCollector
}

// NewMonitor creates a new Monitor.
func NewMonitor(events repository.OutboxRepository, metrics MetricsCollector) *Monitor {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Monitor{events: events, metrics: metrics}
}

// ListEvents returns the bound tenant's events in status, newest first.
// FAILED events are the ones needing operator attention.
func (m *Monitor) ListEvents(ctx context.Context, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "must be PENDING, SENT or FAILED"}
	}

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	return m.events.ListByStatus(ctx, tenantID.String(), status, limit)
}

// Backlog returns the number of events per status across tenants and
// reports it to the metrics collector.
func (m *Monitor) Backlog(ctx context.Context) (map[domain.OutboxStatus]int, error) {
	counts, err := m.events.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordBacklog(counts)
	return counts, nil
}
