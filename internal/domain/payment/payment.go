package payment

import (
	"fmt"
	"time"

	"github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusCreated         Status = "created"
	StatusSubmitted       Status = "submitted"
	StatusSettled         Status = "settled"
	StatusFailedRetryable Status = "failed_retryable"
	StatusFailedTerminal  Status = "failed_terminal"
	StatusCancelled       Status = "cancelled"
)

// Payment represents a payment intent. It is never physically deleted;
// terminal records are retained for audit and idempotency replay.
type Payment struct {
	ID             uuid.UUID
	IdempotencyKey string
	Amount         Amount
	Status         Status
	Version        int64
	RetryCount     int
	MaxRetries     int
	FailureReason  *string
	SubmittedAt    *time.Time
	NextRetryAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	return validateAmount(a)
}

// NewPayment creates a new payment in the created state.
func NewPayment(idempotencyKey string, amount Amount, maxRetries int) (*Payment, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		return nil, errors.ErrInvalidInput
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	now := time.Now()
	return &Payment{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Status:         StatusCreated,
		Version:        0,
		RetryCount:     0,
		MaxRetries:     maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Apply runs the given command through the state machine and mutates the
// payment accordingly. It returns the lifecycle events to enqueue. The caller
// is responsible for persisting payment and events in one transaction.
func (p *Payment) Apply(cmd Command) ([]EventType, error) {
	d, err := Decide(p.Status, cmd, p.RetryCount, p.MaxRetries)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.Status = d.Next
	p.UpdatedAt = now
	if d.IncrementsRetry {
		p.RetryCount++
	}
	if cmd == CommandSubmit || cmd == CommandRetry {
		p.SubmittedAt = &now
		p.NextRetryAt = nil
	}
	if p.IsTerminal() {
		p.CompletedAt = &now
		p.NextRetryAt = nil
	}
	return d.Events, nil
}

// Submit moves the payment from created to submitted.
func (p *Payment) Submit() ([]EventType, error) {
	return p.Apply(CommandSubmit)
}

// ConfirmSuccess settles a submitted payment.
func (p *Payment) ConfirmSuccess() ([]EventType, error) {
	return p.Apply(CommandConfirmSuccess)
}

// ConfirmTransientFailure records the failure reason and schedules a retry.
// The reason is recorded before the transition so it is never lost.
func (p *Payment) ConfirmTransientFailure(reason string, nextRetryAt time.Time) ([]EventType, error) {
	p.FailureReason = &reason
	events, err := p.Apply(CommandConfirmTransientFailure)
	if err != nil {
		return nil, err
	}
	p.NextRetryAt = &nextRetryAt
	return events, nil
}

// Retry re-submits a retryable failure.
func (p *Payment) Retry() ([]EventType, error) {
	return p.Apply(CommandRetry)
}

// ConfirmPermanentFailure terminates the payment with the given reason.
func (p *Payment) ConfirmPermanentFailure(reason string) ([]EventType, error) {
	p.FailureReason = &reason
	return p.Apply(CommandConfirmPermanentFailure)
}

// ExhaustRetries terminates a retryable failure whose retry budget is spent.
func (p *Payment) ExhaustRetries() ([]EventType, error) {
	reason := fmt.Sprintf("retries exhausted after %d attempts", p.RetryCount)
	if p.FailureReason != nil {
		reason = fmt.Sprintf("%s (last error: %s)", reason, *p.FailureReason)
	}
	p.FailureReason = &reason
	return p.Apply(CommandExhaustRetries)
}

// Cancel cancels a payment that has not been submitted yet.
func (p *Payment) Cancel() ([]EventType, error) {
	return p.Apply(CommandCancel)
}

// IsTerminal checks if the payment is in a terminal state
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusSettled ||
		p.Status == StatusFailedTerminal ||
		p.Status == StatusCancelled
}

// RetryDue reports whether a retryable payment is eligible for a retry at t.
func (p *Payment) RetryDue(t time.Time) bool {
	if p.Status != StatusFailedRetryable {
		return false
	}
	return p.NextRetryAt == nil || !p.NextRetryAt.After(t)
}

func validateAmount(amount Amount) error {
	if amount.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if amount.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	// Simple currency validation (3-letter code)
	if len(amount.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}
