package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"tripcore/internal/domain"
	"tripcore/internal/repository"
	"tripcore/internal/tenant"
)

var (
	// ErrBatchInProgress is returned by RunOnce while another batch of the
	// same publisher is still running.
	ErrBatchInProgress = errors.New("outbox batch already in progress")

	// ErrAlreadyRunning is returned when starting a running publisher.
	ErrAlreadyRunning = errors.New("outbox publisher already running")

	// ErrNotRunning is returned when stopping a publisher that is not running.
	ErrNotRunning = errors.New("outbox publisher not running")
)

// BatchResult summarizes one publisher run.
type BatchResult struct {
	Claimed int
	Sent    int
	Retried int
	Failed  int
}

// Publisher drains due outbox events through a Dispatcher.
//
// Each batch runs in one transaction: due events are claimed with row locks,
// dispatched one by one and their new delivery state is written before the
// commit. Publishers in other processes skip the locked rows. A dispatch
// failure only affects its own event; a persistence failure rolls back the
// whole batch so its events are dispatched again later.
type Publisher struct {
	tx         repository.Transactor
	dispatcher Dispatcher
	config     Config
	policy     domain.RetryPolicy
	clock      clockwork.Clock
	logger     zerolog.Logger
	metrics    MetricsCollector

	inFlight atomic.Bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPublisher creates a new Publisher. A nil metrics collector records nothing.
func NewPublisher(
	tx repository.Transactor,
	dispatcher Dispatcher,
	cfg Config,
	clock clockwork.Clock,
	logger zerolog.Logger,
	metrics MetricsCollector,
) *Publisher {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	cfg = cfg.withDefaults()

	return &Publisher{
		tx:         tx,
		dispatcher: NewMetricDispatcher(dispatcher, metrics, clock),
		config:     cfg,
		policy:     cfg.RetryPolicy(),
		clock:      clock,
		logger:     logger.With().Str("component", "outbox_publisher").Logger(),
		metrics:    metrics,
	}
}

// Start runs a batch immediately and then every PollInterval until Stop is
// called or ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.stopChan = make(chan struct{})

	p.wg.Add(1)
	go p.run(ctx, p.stopChan)

	p.logger.Info().
		Dur("poll_interval", p.config.PollInterval).
		Int("batch_size", p.config.BatchSize).
		Int("max_attempts", p.config.MaxAttempts).
		Msg("outbox publisher started")

	return nil
}

// Stop signals the loop to exit and waits for the current batch to finish.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()

	p.logger.Info().Msg("outbox publisher stopped")
	return nil
}

func (p *Publisher) run(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Publisher) tick(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrBatchInProgress) {
			p.logger.Debug().Msg("previous outbox batch still running")
			return
		}
		p.logger.Error().Err(err).Msg("outbox batch failed")
	}
}

// RunOnce claims and dispatches one batch of due events.
func (p *Publisher) RunOnce(ctx context.Context) (BatchResult, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return BatchResult{}, ErrBatchInProgress
	}
	defer p.inFlight.Store(false)

	start := p.clock.Now()

	var result BatchResult
	err := p.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result = BatchResult{}

		events, err := repos.Outbox.ClaimDue(ctx, p.clock.Now(), p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("claim due events: %w", err)
		}
		result.Claimed = len(events)

		for _, event := range events {
			if err := p.process(ctx, repos.Outbox, event, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	if result.Claimed > 0 {
		p.metrics.RecordBatch(result, p.clock.Since(start))
		p.logger.Info().
			Int("claimed", result.Claimed).
			Int("sent", result.Sent).
			Int("retried", result.Retried).
			Int("failed", result.Failed).
			Msg("processed outbox events")
	}

	return result, nil
}

func (p *Publisher) process(ctx context.Context, events repository.OutboxRepository, event *domain.OutboxEvent, result *BatchResult) error {
	dispatchErr := p.dispatch(ctx, event)
	now := p.clock.Now()

	if dispatchErr == nil {
		if err := event.MarkSent(now); err != nil {
			return err
		}
		result.Sent++
	} else {
		terminal, err := event.RecordFailure(now, dispatchErr, p.policy)
		if err != nil {
			return err
		}

		log := p.logger.Warn()
		if terminal {
			log = p.logger.Error()
			result.Failed++
		} else {
			result.Retried++
		}
		log.Err(dispatchErr).
			Str("event_id", event.ID).
			Str("event_type", event.EventType).
			Str("tenant_id", event.TenantID).
			Int("attempts", event.Attempts).
			Time("next_attempt_at", event.NextAttemptAt).
			Bool("terminal", terminal).
			Msg("outbox dispatch failed")
	}

	if err := events.Update(ctx, event); err != nil {
		return fmt.Errorf("update outbox event %s: %w", event.ID, err)
	}
	return nil
}

// dispatch delivers one event with the event's tenant bound. Any failure,
// including a panicking dispatcher, is returned as a transport error.
func (p *Publisher) dispatch(ctx context.Context, event *domain.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
		if err != nil && !errors.Is(err, domain.ErrTransport) {
			err = &domain.TransportError{EventID: event.ID, Err: err}
		}
	}()

	return tenant.Run(ctx, event.TenantID, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.config.DispatchTimeout)
		defer cancel()

		return p.dispatcher.Dispatch(ctx, NewEnvelope(event))
	})
}
