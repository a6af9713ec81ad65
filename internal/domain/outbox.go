package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery status of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s OutboxStatus) Valid() bool {
	switch s {
	case OutboxStatusPending, OutboxStatusSent, OutboxStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the publisher is done with the event.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxStatusSent || s == OutboxStatusFailed
}

// ErrOutboxEventTerminal is returned when mutating a SENT or FAILED event.
var ErrOutboxEventTerminal error = &InvalidStateError{Entity: "outbox event", Op: "update", Status: "terminal"}

// AggregateTrip is the aggregate type recorded for trip events.
const AggregateTrip = "trip"

// OutboxEvent is an intent-to-notify record written in the same transaction
// as the state change it describes.
type OutboxEvent struct {
	ID            string
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	Status        OutboxStatus
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
	FailedAt      *time.Time
	LastError     string
	TraceID       string
	SpanID        string
}

// NewOutboxEvent builds a PENDING event due immediately.
func NewOutboxEvent(tenantID, aggregateType, aggregateID, eventType string, payload any, now time.Time) (*OutboxEvent, error) {
	if tenantID == "" || aggregateID == "" || eventType == "" {
		return nil, &ValidationError{Field: "outbox_event", Reason: "tenant, aggregate id and event type are required"}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		Status:        OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// RetryPolicy controls how failed dispatches are rescheduled.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy returns 5 attempts with a 5s linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 5 * time.Second,
	}
}

// NextAttemptAt returns when an event that has failed attempts times may be
// retried.
func (p RetryPolicy) NextAttemptAt(now time.Time, attempts int) time.Time {
	return now.Add(p.BaseBackoff * time.Duration(attempts))
}

// IsDue reports whether the event may be dispatched at now.
func (e *OutboxEvent) IsDue(now time.Time) bool {
	return e.Status == OutboxStatusPending && !e.NextAttemptAt.After(now)
}

// MarkSent retires the event after a successful dispatch.
func (e *OutboxEvent) MarkSent(now time.Time) error {
	if e.Status.IsTerminal() {
		return ErrOutboxEventTerminal
	}
	e.Status = OutboxStatusSent
	e.SentAt = stamp(now)
	e.LastError = ""
	return nil
}

// RecordFailure counts a failed dispatch. The event becomes FAILED once the
// policy's attempts are exhausted; otherwise it stays PENDING and is
// rescheduled with linear backoff. It reports whether the event is now
// terminal.
func (e *OutboxEvent) RecordFailure(now time.Time, cause error, policy RetryPolicy) (bool, error) {
	if e.Status.IsTerminal() {
		return false, ErrOutboxEventTerminal
	}

	e.Attempts++
	if cause != nil {
		e.LastError = truncate(cause.Error(), 1024)
	}

	if e.Attempts >= policy.MaxAttempts {
		e.Status = OutboxStatusFailed
		e.FailedAt = stamp(now)
		return true, nil
	}

	e.NextAttemptAt = policy.NextAttemptAt(now, e.Attempts)
	return false, nil
}

// truncate cuts s to at most n bytes of valid UTF-8 without splitting a rune.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
