package controller

import (
	"time"

	"github.com/alpian-ledger/payment-service/internal/domain/payment"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (validation tags, string IDs).
// Controllers convert these to use-case inputs before calling business logic.

// CreatePaymentRequest holds the input for creating a payment. Amounts travel
// as integer minor units; no floats touch money.
type CreatePaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

// --- Response DTOs ---

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID             string     `json:"id"`
	IdempotencyKey string     `json:"idempotency_key"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	Version        int64      `json:"version"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// EventResponse represents one audit event in API responses.
type EventResponse struct {
	ID        string         `json:"id"`
	PaymentID string         `json:"payment_id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromPayment converts a domain payment to API response.
func FromPayment(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:             p.ID.String(),
		IdempotencyKey: p.IdempotencyKey,
		AmountCents:    p.Amount.ValueCents,
		Currency:       p.Amount.Currency,
		Status:         string(p.Status),
		Version:        p.Version,
		RetryCount:     p.RetryCount,
		MaxRetries:     p.MaxRetries,
		FailureReason:  p.FailureReason,
		SubmittedAt:    p.SubmittedAt,
		NextRetryAt:    p.NextRetryAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		CompletedAt:    p.CompletedAt,
	}
}

// FromEvent converts a domain audit event to API response.
func FromEvent(e *payment.Event) *EventResponse {
	return &EventResponse{
		ID:        e.ID.String(),
		PaymentID: e.PaymentID.String(),
		EventType: string(e.EventType),
		EventData: e.EventData,
		CreatedAt: e.CreatedAt,
	}
}
