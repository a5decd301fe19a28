package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/outbox"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/alpian-ledger/payment-service/pkg/retry"
	"github.com/google/uuid"
)

// Transitioner applies lifecycle commands to payments. Every successful
// transition persists the payment, its audit event, and the outbox entries for
// the produced lifecycle events in one transaction, guarded by the version
// read at the start of the attempt. Version conflicts are retried by
// re-reading the payment and re-running the state machine, so a command that
// lost the race against a conflicting writer fails with ErrInvalidTransition
// rather than silently overwriting.
type Transitioner struct {
	paymentRepo payment.Repository
	outboxRepo  outbox.Repository
	txManager   TransactionManager
	backoff     BackoffPolicy
	conflict    retry.Config
}

// NewTransitioner creates a Transitioner. conflictRetries bounds how many
// times a command is replayed after losing a version race.
func NewTransitioner(
	paymentRepo payment.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	backoff BackoffPolicy,
	conflictRetries uint,
) *Transitioner {
	if conflictRetries == 0 {
		conflictRetries = 3
	}
	return &Transitioner{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		backoff:     backoff,
		conflict: retry.Config{
			MaxAttempts:  conflictRetries,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     250 * time.Millisecond,
		},
	}
}

// Apply runs cmd against the payment identified by id. The reason is recorded
// on failure commands and ignored otherwise. It returns the payment as
// persisted.
func (t *Transitioner) Apply(ctx context.Context, id uuid.UUID, cmd payment.Command, reason string) (*payment.Payment, error) {
	var result *payment.Payment

	attempt := func() error {
		p, err := t.paymentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		expected := p.Version

		events, err := t.runCommand(p, cmd, reason)
		if err != nil {
			return err
		}

		if err := t.persist(ctx, p, expected, events); err != nil {
			return err
		}
		result = p
		return nil
	}

	err := retry.DoIf(ctx, t.conflict, func(err error) bool {
		return errors.Is(err, domainErrors.ErrVersionConflict)
	}, attempt)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// runCommand mutates p through the state machine. Failure commands carry the
// reason; a transient failure additionally gets its next retry time from the
// backoff policy and the retry count before this failure.
func (t *Transitioner) runCommand(p *payment.Payment, cmd payment.Command, reason string) ([]payment.EventType, error) {
	switch cmd {
	case payment.CommandConfirmTransientFailure:
		nextRetryAt := time.Now().Add(t.backoff.Delay(p.RetryCount))
		return p.ConfirmTransientFailure(reason, nextRetryAt)
	case payment.CommandConfirmPermanentFailure:
		return p.ConfirmPermanentFailure(reason)
	case payment.CommandExhaustRetries:
		return p.ExhaustRetries()
	default:
		return p.Apply(cmd)
	}
}

// persist writes the payment, audit trail, and outbox entries atomically.
func (t *Transitioner) persist(ctx context.Context, p *payment.Payment, expectedVersion int64, events []payment.EventType) error {
	occurredAt := time.Now().UTC()
	return t.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := t.paymentRepo.UpdateVersioned(txCtx, p, expectedVersion); err != nil {
			return err
		}
		for _, ev := range events {
			payload, err := json.Marshal(NewEventEnvelope(p, ev, occurredAt))
			if err != nil {
				return fmt.Errorf("marshal event %s: %w", ev, err)
			}
			if err := t.outboxRepo.Enqueue(txCtx, outbox.NewEntry(p.ID, string(ev), payload)); err != nil {
				return err
			}
			if err := t.paymentRepo.AddEvent(txCtx, payment.NewEvent(p.ID, ev, eventData(p))); err != nil {
				return err
			}
		}
		return nil
	})
}

// EventEnvelope is the wire form of a lifecycle event. Consumers shard on the
// payment id, which keeps each payment's events on one partition.
type EventEnvelope struct {
	EventID       string  `json:"event_id"`
	EventType     string  `json:"event_type"`
	PaymentID     string  `json:"payment_id"`
	AmountCents   int64   `json:"amount_cents"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	RetryCount    int     `json:"retry_count"`
	FailureReason *string `json:"failure_reason,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}

// NewEventEnvelope snapshots the payment into the published form of ev.
func NewEventEnvelope(p *payment.Payment, ev payment.EventType, occurredAt time.Time) EventEnvelope {
	return EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(ev),
		PaymentID:     p.ID.String(),
		AmountCents:   p.Amount.ValueCents,
		Currency:      p.Amount.Currency,
		Status:        string(p.Status),
		RetryCount:    p.RetryCount,
		FailureReason: p.FailureReason,
		OccurredAt:    occurredAt.Format(time.RFC3339Nano),
	}
}

func eventData(p *payment.Payment) map[string]any {
	data := map[string]any{
		"status":       string(p.Status),
		"amount_cents": p.Amount.ValueCents,
		"currency":     p.Amount.Currency,
		"retry_count":  p.RetryCount,
	}
	if p.FailureReason != nil {
		data["failure_reason"] = *p.FailureReason
	}
	if p.NextRetryAt != nil {
		data["next_retry_at"] = p.NextRetryAt.UTC().Format(time.RFC3339Nano)
	}
	return data
}
