package payment

import (
	"context"

	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/google/uuid"
)

// CancelPaymentUseCase cancels a payment that has not been submitted yet.
type CancelPaymentUseCase struct {
	transitioner *Transitioner
}

func NewCancelPaymentUseCase(transitioner *Transitioner) *CancelPaymentUseCase {
	return &CancelPaymentUseCase{transitioner: transitioner}
}

// Execute cancels the payment. Only created payments can be cancelled; a
// payment the scheduler already submitted fails with ErrInvalidTransition,
// and a cancel racing the scheduler loses the version race and fails the
// same way after the replay re-reads the submitted state.
func (uc *CancelPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return uc.transitioner.Apply(ctx, id, payment.CommandCancel, "")
}
