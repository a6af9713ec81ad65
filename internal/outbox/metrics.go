package outbox

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/newrelic/go-agent/v3/newrelic"

	"tripcore/internal/domain"
)

// MetricsCollector defines the interface for collecting outbox metrics.
type MetricsCollector interface {
	RecordDispatch(eventType string, success bool, duration time.Duration)
	RecordBatch(result BatchResult, duration time.Duration)
	RecordBacklog(counts map[domain.OutboxStatus]int)
}

// NoOpMetrics is a no-op implementation for when metrics aren't needed.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordDispatch(eventType string, success bool, duration time.Duration) {}
func (NoOpMetrics) RecordBatch(result BatchResult, duration time.Duration)                {}
func (NoOpMetrics) RecordBacklog(counts map[domain.OutboxStatus]int)                      {}

// NewRelicMetrics records outbox metrics as New Relic custom metrics.
type NewRelicMetrics struct {
	app *newrelic.Application
}

// NewNewRelicMetrics creates a collector reporting to app. A nil app yields
// a collector that records nothing.
func NewNewRelicMetrics(app *newrelic.Application) *NewRelicMetrics {
	return &NewRelicMetrics{app: app}
}

func (m *NewRelicMetrics) RecordDispatch(eventType string, success bool, duration time.Duration) {
	if m.app == nil {
		return
	}
	outcome := "Success"
	if !success {
		outcome = "Failure"
	}
	m.app.RecordCustomMetric("Custom/Outbox/Dispatch/"+eventType+"/"+outcome, float64(duration.Milliseconds()))
}

func (m *NewRelicMetrics) RecordBatch(result BatchResult, duration time.Duration) {
	if m.app == nil {
		return
	}
	m.app.RecordCustomMetric("Custom/Outbox/Batch/Duration", float64(duration.Milliseconds()))
	m.app.RecordCustomMetric("Custom/Outbox/Batch/Claimed", float64(result.Claimed))
	m.app.RecordCustomMetric("Custom/Outbox/Batch/Sent", float64(result.Sent))
	m.app.RecordCustomMetric("Custom/Outbox/Batch/Retried", float64(result.Retried))
	m.app.RecordCustomMetric("Custom/Outbox/Batch/Failed", float64(result.Failed))
}

func (m *NewRelicMetrics) RecordBacklog(counts map[domain.OutboxStatus]int) {
	if m.app == nil {
		return
	}
	for _, status := range []domain.OutboxStatus{domain.OutboxStatusPending, domain.OutboxStatusSent, domain.OutboxStatusFailed} {
		m.app.RecordCustomMetric("Custom/Outbox/Backlog/"+string(status), float64(counts[status]))
	}
}

// MetricDispatcher wraps a Dispatcher with metrics collection.
type MetricDispatcher struct {
	dispatcher Dispatcher
	metrics    MetricsCollector
	clock      clockwork.Clock
}

// NewMetricDispatcher creates a new MetricDispatcher.
func NewMetricDispatcher(dispatcher Dispatcher, metrics MetricsCollector, clock clockwork.Clock) *MetricDispatcher {
	return &MetricDispatcher{
		dispatcher: dispatcher,
		metrics:    metrics,
		clock:      clock,
	}
}

// Dispatch forwards env and records the outcome.
func (d *MetricDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	start := d.clock.Now()

	err := d.dispatcher.Dispatch(ctx, env)

	d.metrics.RecordDispatch(env.EventType, err == nil, d.clock.Since(start))
	return err
}
