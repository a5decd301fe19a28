package gateway

import (
	"context"
)

// Result holds the outcome of a downstream submission.
type Result struct {
	TransactionID string
	Status        string // "accepted", "rejected"
	ErrorMessage  string
}

// Gateway is the interface the payment processor integration implements.
type Gateway interface {
	// Name returns the gateway name.
	Name() string
	// Submit submits a payment for processing downstream.
	Submit(ctx context.Context, req SubmitRequest) (*Result, error)
}

// SubmitRequest contains the data needed to submit a payment.
type SubmitRequest struct {
	PaymentID   string
	AmountCents int64
	Currency    string
	Attempt     int
}
