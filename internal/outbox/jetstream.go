package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
)

// JetStreamConfig configures the JetStream stream events are published to.
type JetStreamConfig struct {
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration // How long to keep messages
	Replicas        int
	DuplicateWindow time.Duration // Window for duplicate detection
}

// DefaultJetStreamConfig returns the default stream configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		StreamName:      "TRIP_EVENTS",
		SubjectPrefix:   "trips.events",
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamDispatcher publishes envelopes to NATS JetStream. The event id is
// sent as the message id, so redeliveries inside the duplicate window are
// dropped by the server.
type JetStreamDispatcher struct {
	js     jetstream.JetStream
	config JetStreamConfig
	logger zerolog.Logger
}

// NewJetStreamDispatcher creates the dispatcher and makes sure the stream exists.
func NewJetStreamDispatcher(ctx context.Context, nc *nats.Conn, cfg JetStreamConfig, logger zerolog.Logger) (*JetStreamDispatcher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	d := &JetStreamDispatcher{
		js:     js,
		config: cfg,
		logger: logger.With().Str("component", "jetstream_dispatcher").Logger(),
	}

	if err := d.ensureStream(ctx); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return d, nil
}

func (d *JetStreamDispatcher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        d.config.StreamName,
		Description: "Trip lifecycle events relayed from the outbox",
		Subjects:    []string{d.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      d.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    d.config.Replicas,
		Duplicates:  d.config.DuplicateWindow,
	}
}

func (d *JetStreamDispatcher) ensureStream(ctx context.Context) error {
	sc := d.streamConfig()

	stream, err := d.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = d.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		d.logger.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !streamConfigEqual(info.Config, sc) {
		if _, err = d.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		d.logger.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

func streamConfigEqual(a, b jetstream.StreamConfig) bool {
	if len(a.Subjects) != len(b.Subjects) {
		return false
	}
	for i := range a.Subjects {
		if a.Subjects[i] != b.Subjects[i] {
			return false
		}
	}
	return a.MaxAge == b.MaxAge &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates &&
		a.Storage == b.Storage
}

// Subject returns the subject env is published on.
func (d *JetStreamDispatcher) Subject(env Envelope) string {
	return fmt.Sprintf("%s.%s.%s", d.config.SubjectPrefix, env.TenantID, env.EventType)
}

// Dispatch publishes env and waits for the stream acknowledgement.
func (d *JetStreamDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return &domain.TransportError{EventID: env.EventID, Err: fmt.Errorf("marshal envelope: %w", err)}
	}

	msg := &nats.Msg{
		Subject: d.Subject(env),
		Data:    data,
		Header: nats.Header{
			"Event-ID":   []string{env.EventID},
			"Event-Type": []string{env.EventType},
			"Tenant-ID":  []string{env.TenantID},
		},
	}
	if env.TraceID != "" {
		msg.Header.Set("Trace-ID", env.TraceID)
	}

	ack, err := d.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(d.config.StreamName),
	)
	if err != nil {
		return &domain.TransportError{EventID: env.EventID, Err: err}
	}

	d.logger.Debug().
		Str("event_id", env.EventID).
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("event published")
	return nil
}
