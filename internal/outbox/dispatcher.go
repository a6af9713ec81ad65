package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"tripcore/internal/domain"
)

// Envelope is the wire representation of an outbox event. EventID is stable
// across retries and is the consumer's idempotency key.
type Envelope struct {
	EventID       string          `json:"event_id"`
	TenantID      string          `json:"tenant_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	TraceID       string          `json:"trace_id,omitempty"`
	SpanID        string          `json:"span_id,omitempty"`
	Attempt       int             `json:"attempt"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEnvelope builds the envelope for the next delivery attempt of event.
func NewEnvelope(event *domain.OutboxEvent) Envelope {
	return Envelope{
		EventID:       event.ID,
		TenantID:      event.TenantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		TraceID:       event.TraceID,
		SpanID:        event.SpanID,
		Attempt:       event.Attempts + 1,
		OccurredAt:    event.CreatedAt,
	}
}

// Dispatcher delivers envelopes to the outside world. Implementations return
// a *domain.TransportError on failure; the publisher retries them.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, env Envelope) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// LogDispatcher writes envelopes to the log. Used in development when no
// broker is configured.
type LogDispatcher struct {
	logger zerolog.Logger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(logger zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With().Str("component", "log_dispatcher").Logger()}
}

// Dispatch logs env and always succeeds.
func (d *LogDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	d.logger.Info().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Str("tenant_id", env.TenantID).
		Str("aggregate_id", env.AggregateID).
		Int("attempt", env.Attempt).
		RawJSON("payload", env.Payload).
		Msg("event dispatched")
	return nil
}
