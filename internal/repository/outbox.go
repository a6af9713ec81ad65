package repository

import (
	"context"
	"time"

	"tripcore/internal/domain"
)

// OutboxRepository defines the persistence operations for outbox events.
type OutboxRepository interface {
	// Append stores a new PENDING event.
	Append(ctx context.Context, event *domain.OutboxEvent) error

	// ClaimDue returns up to limit PENDING events with NextAttemptAt <= now,
	// oldest first. Inside a transaction the returned rows stay locked until
	// it ends; rows locked by another transaction are skipped.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)

	// Update persists the delivery state of an event.
	Update(ctx context.Context, event *domain.OutboxEvent) error

	// ListByStatus returns the tenant's events in status, newest first.
	ListByStatus(ctx context.Context, tenantID string, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error)

	// CountByStatus returns the number of events per status across tenants.
	CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error)
}
