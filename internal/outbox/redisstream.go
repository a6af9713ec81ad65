package outbox

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tripcore/internal/domain"
)

// RedisStreamDispatcher appends envelopes to a Redis stream with XADD.
// Consumers deduplicate on the event_id field.
type RedisStreamDispatcher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamDispatcher creates a new RedisStreamDispatcher. The stream is
// trimmed to roughly maxLen entries; zero disables trimming.
func NewRedisStreamDispatcher(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamDispatcher {
	return &RedisStreamDispatcher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Dispatch appends env to the stream.
func (d *RedisStreamDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	args := &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"event_id":       env.EventID,
			"event_type":     env.EventType,
			"tenant_id":      env.TenantID,
			"aggregate_type": env.AggregateType,
			"aggregate_id":   env.AggregateID,
			"trace_id":       env.TraceID,
			"attempt":        env.Attempt,
			"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
			"payload":        string(env.Payload),
		},
	}
	if d.maxLen > 0 {
		args.MaxLen = d.maxLen
		args.Approx = true
	}

	if err := d.client.XAdd(ctx, args).Err(); err != nil {
		return &domain.TransportError{EventID: env.EventID, Err: err}
	}
	return nil
}
