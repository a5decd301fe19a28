package publisher

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/outbox"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/bus"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Config controls the outbox drain loop.
type Config struct {
	InstanceID   string
	Topic        string
	BatchSize    int
	PollInterval time.Duration
	Lease        time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

// Publisher drains the transactional outbox to the message bus. Each pass
// claims a leased batch in sequence order, publishes each entry, and records
// the outcome per entry. A send is only marked published after the bus
// confirmed it, so a crash mid-batch re-delivers rather than drops:
// consumers get at-least-once delivery.
type Publisher struct {
	outboxRepo outbox.Repository
	bus        bus.Publisher
	logger     zerolog.Logger
	metrics    *observability.Metrics
	cfg        Config
}

func New(outboxRepo outbox.Repository, b bus.Publisher, logger zerolog.Logger, metrics *observability.Metrics, cfg Config) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 5 * time.Minute
	}
	return &Publisher{
		outboxRepo: outboxRepo,
		bus:        b,
		logger:     logger.With().Str("component", "outbox_publisher").Logger(),
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run polls the outbox until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info().
		Str("topic", p.cfg.Topic).
		Int("batch_size", p.cfg.BatchSize).
		Dur("poll_interval", p.cfg.PollInterval).
		Msg("Outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := p.DrainOnce(ctx); err != nil {
			p.logger.Error().Err(err).Msg("Outbox drain pass failed")
		}
	}
}

// DrainOnce claims and publishes one batch. When a send fails, later entries
// of the same payment in the batch are deferred too, keeping per-payment
// publish order intact.
func (p *Publisher) DrainOnce(ctx context.Context) error {
	entries, err := p.outboxRepo.ClaimBatch(ctx, p.cfg.InstanceID, p.cfg.BatchSize, p.cfg.Lease)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	p.metrics.OutboxClaimedBatch.Observe(float64(len(entries)))

	blocked := make(map[string]time.Duration)
	for _, entry := range entries {
		key := entry.PaymentID.String()

		if backoff, ok := blocked[key]; ok {
			p.markFailed(ctx, entry.SequenceID, backoff)
			continue
		}

		if err := p.bus.Publish(ctx, p.cfg.Topic, key, entry.Payload); err != nil {
			backoff := p.backoffFor(entry.AttemptCount)
			p.metrics.OutboxPublishFailures.Inc()
			p.logger.Warn().Err(err).
				Int64("sequence_id", entry.SequenceID).
				Str("payment_id", key).
				Str("event_type", entry.EventType).
				Int("attempt", entry.AttemptCount).
				Dur("backoff", backoff).
				Msg("Publish failed, deferring entry")
			p.markFailed(ctx, entry.SequenceID, backoff)
			blocked[key] = backoff
			continue
		}

		if err := p.outboxRepo.MarkPublished(ctx, entry.SequenceID, p.cfg.InstanceID); err != nil {
			if errors.Is(err, domainErrors.ErrLockNotHeld) {
				// Our lease expired mid-publish and another instance owns
				// the entry now; it will re-deliver, which at-least-once
				// consumers tolerate.
				p.logger.Warn().Int64("sequence_id", entry.SequenceID).Msg("Lease lost before publish confirmation")
				continue
			}
			p.logger.Error().Err(err).Int64("sequence_id", entry.SequenceID).Msg("Failed to mark outbox entry published")
			continue
		}
		p.metrics.OutboxPublished.Inc()
	}
	return nil
}

// markFailed defers the entry, tolerating a lease lost to another instance.
func (p *Publisher) markFailed(ctx context.Context, sequenceID int64, backoff time.Duration) {
	if err := p.outboxRepo.MarkFailed(ctx, sequenceID, p.cfg.InstanceID, backoff); err != nil {
		if errors.Is(err, domainErrors.ErrLockNotHeld) {
			p.logger.Warn().Int64("sequence_id", sequenceID).Msg("Lease lost before deferral")
			return
		}
		p.logger.Error().Err(err).Int64("sequence_id", sequenceID).Msg("Failed to mark outbox entry failed")
	}
}

// backoffFor doubles the base per prior attempt, capped. attemptCount counts
// the claim that just failed, so the first failure waits the base delay.
func (p *Publisher) backoffFor(attemptCount int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < attemptCount; i++ {
		d *= 2
		if d >= p.cfg.BackoffCap {
			return p.cfg.BackoffCap
		}
	}
	if d > p.cfg.BackoffCap {
		return p.cfg.BackoffCap
	}
	return d
}
