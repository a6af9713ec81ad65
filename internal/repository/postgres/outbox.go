package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
)

// OutboxRepository is a PostgreSQL implementation of repository.OutboxRepository.
type OutboxRepository struct {
	q Querier
}

// NewOutboxRepository creates a new PostgreSQL outbox repository.
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{q: db}
}

// NewOutboxRepositoryWithTx creates an outbox repository using a transaction.
func NewOutboxRepositoryWithTx(tx *sql.Tx) *OutboxRepository {
	return &OutboxRepository{q: tx}
}

const outboxColumns = `id, tenant_id, aggregate_type, aggregate_id, event_type, payload,
	status, attempts, next_attempt_at, created_at, sent_at, failed_at,
	last_error, trace_id, span_id`

// Append stores a new event.
func (r *OutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (` + outboxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		event.Status,
		event.Attempts,
		event.NextAttemptAt,
		event.CreatedAt,
		nullTime(event.SentAt),
		nullTime(event.FailedAt),
		nullString(event.LastError),
		nullString(event.TraceID),
		nullString(event.SpanID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("append outbox event %s: %w", event.ID, err)
	}
	return nil
}

// ClaimDue locks up to limit due events. Rows locked by a concurrent
// publisher are skipped, so each event is handled by one publisher at a time.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	return r.query(ctx, query, domain.OutboxStatusPending, now, limit)
}

// Update persists the delivery state of an event.
func (r *OutboxRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	query := `
		UPDATE outbox_events
		SET status = $2, attempts = $3, next_attempt_at = $4, sent_at = $5, failed_at = $6, last_error = $7
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.Status,
		event.Attempts,
		event.NextAttemptAt,
		nullTime(event.SentAt),
		nullTime(event.FailedAt),
		nullString(event.LastError),
	)
	if err != nil {
		return fmt.Errorf("update outbox event %s: %w", event.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByStatus returns the tenant's events in status, newest first.
func (r *OutboxRepository) ListByStatus(ctx context.Context, tenantID string, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	return r.query(ctx, query, tenantID, status, limit)
}

// CountByStatus returns the number of events per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OutboxStatus]int)
	for rows.Next() {
		var status domain.OutboxStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *OutboxRepository) query(ctx context.Context, query string, args ...any) ([]*domain.OutboxEvent, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			event                      domain.OutboxEvent
			payload                    []byte
			sentAt, failedAt           sql.NullTime
			lastError, traceID, spanID sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			&payload,
			&event.Status,
			&event.Attempts,
			&event.NextAttemptAt,
			&event.CreatedAt,
			&sentAt,
			&failedAt,
			&lastError,
			&traceID,
			&spanID,
		); err != nil {
			return nil, err
		}

		event.Payload = payload
		event.SentAt = timePtr(sentAt)
		event.FailedAt = timePtr(failedAt)
		event.LastError = lastError.String
		event.TraceID = traceID.String
		event.SpanID = spanID.String
		events = append(events, &event)
	}
	return events, rows.Err()
}
