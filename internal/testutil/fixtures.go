package testutil

import (
	"time"

	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/google/uuid"
)

func NewTestPayment(amountCents int64, currency string) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		ID:             uuid.New(),
		IdempotencyKey: uuid.New().String(),
		Amount:         payment.Amount{ValueCents: amountCents, Currency: currency},
		Status:         payment.StatusCreated,
		Version:        0,
		RetryCount:     0,
		MaxRetries:     3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func NewSubmittedPayment(amountCents int64, currency string) *payment.Payment {
	p := NewTestPayment(amountCents, currency)
	p.Status = payment.StatusSubmitted
	submittedAt := time.Now()
	p.SubmittedAt = &submittedAt
	p.Version = 1
	return p
}

func NewRetryablePayment(amountCents int64, currency string, retryCount int) *payment.Payment {
	p := NewSubmittedPayment(amountCents, currency)
	p.Status = payment.StatusFailedRetryable
	p.RetryCount = retryCount
	p.Version = 2
	reason := "gateway unavailable"
	p.FailureReason = &reason
	nextRetryAt := time.Now().Add(-time.Second)
	p.NextRetryAt = &nextRetryAt
	return p
}

func TimePtr(t time.Time) *time.Time {
	return &t
}
