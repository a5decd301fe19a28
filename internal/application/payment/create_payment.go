package payment

import (
	"context"

	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/google/uuid"
)

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	IdempotencyKey string
	AmountCents    int64
	Currency       string
}

// CreatePaymentResponse holds the result of creating a payment. Created is
// false when the idempotency key matched an existing payment and that record
// was returned instead.
type CreatePaymentResponse struct {
	Payment *payment.Payment
	Created bool
}

// CreatePaymentUseCase orchestrates idempotent payment creation.
type CreatePaymentUseCase struct {
	paymentRepo payment.Repository
	txManager   TransactionManager
	maxRetries  int
}

// NewCreatePaymentUseCase creates a new CreatePaymentUseCase. maxRetries is
// the retry budget stamped on each new payment.
func NewCreatePaymentUseCase(paymentRepo payment.Repository, txManager TransactionManager, maxRetries int) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		paymentRepo: paymentRepo,
		txManager:   txManager,
		maxRetries:  maxRetries,
	}
}

// Execute creates a payment in the created state, or returns the existing
// payment when the idempotency key has been seen before. Replays return the
// stored record whatever state it has reached since; no duplicate is written
// and no lifecycle event is produced. Creation itself publishes nothing: the
// first outbox entry appears when the payment is submitted.
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	p, err := payment.NewPayment(
		req.IdempotencyKey,
		payment.Amount{ValueCents: req.AmountCents, Currency: req.Currency},
		uc.maxRetries,
	)
	if err != nil {
		return nil, err
	}

	var resp CreatePaymentResponse
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		stored, created, err := uc.paymentRepo.CreateIfAbsent(txCtx, p)
		if err != nil {
			return err
		}
		resp = CreatePaymentResponse{Payment: stored, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentUseCase reads a payment and its audit trail.
type GetPaymentUseCase struct {
	paymentRepo payment.Repository
}

func NewGetPaymentUseCase(paymentRepo payment.Repository) *GetPaymentUseCase {
	return &GetPaymentUseCase{paymentRepo: paymentRepo}
}

func (uc *GetPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return uc.paymentRepo.GetByID(ctx, id)
}

// Events returns the audit events recorded for the payment, oldest first.
func (uc *GetPaymentUseCase) Events(ctx context.Context, id uuid.UUID) ([]*payment.Event, error) {
	if _, err := uc.paymentRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return uc.paymentRepo.GetEvents(ctx, id)
}
