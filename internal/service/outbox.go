package service

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"tripcore/internal/domain"
)

// newTripEvent builds a trip outbox event carrying the trace of the current
// New Relic transaction, if any.
func newTripEvent(ctx context.Context, trip *domain.Trip, eventType string, payload any, now time.Time) (*domain.OutboxEvent, error) {
	event, err := domain.NewOutboxEvent(trip.TenantID, domain.AggregateTrip, trip.ID, eventType, payload, now)
	if err != nil {
		return nil, err
	}

	md := newrelic.FromContext(ctx).GetTraceMetadata()
	event.TraceID = md.TraceID
	event.SpanID = md.SpanID
	return event, nil
}
