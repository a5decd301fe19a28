package payment

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/gateway"
	"github.com/google/uuid"
)

// SubmitPaymentUseCase drives one submission attempt: transition the payment
// to submitted, call the downstream gateway, and confirm the outcome. Each
// step is its own transition so a crash between the gateway call and the
// confirmation leaves the payment in submitted, where the stuck-submission
// sweep picks it up.
type SubmitPaymentUseCase struct {
	transitioner      *Transitioner
	gatewayFactory    *gateway.Factory
	gatewayName       string
	submissionTimeout time.Duration
}

func NewSubmitPaymentUseCase(
	transitioner *Transitioner,
	gatewayFactory *gateway.Factory,
	gatewayName string,
	submissionTimeout time.Duration,
) *SubmitPaymentUseCase {
	if submissionTimeout <= 0 {
		submissionTimeout = 2 * time.Minute
	}
	return &SubmitPaymentUseCase{
		transitioner:      transitioner,
		gatewayFactory:    gatewayFactory,
		gatewayName:       gatewayName,
		submissionTimeout: submissionTimeout,
	}
}

// Execute submits the payment via cmd, which must be CommandSubmit for a
// created payment or CommandRetry for a retryable failure, then records the
// gateway outcome. It returns the payment in its post-confirmation state.
func (uc *SubmitPaymentUseCase) Execute(ctx context.Context, id uuid.UUID, cmd payment.Command) (*payment.Payment, error) {
	if cmd != payment.CommandSubmit && cmd != payment.CommandRetry {
		return nil, domainErrors.NewDomainError(
			"invalid_submission_command",
			fmt.Sprintf("cannot drive a submission with %s", cmd),
			domainErrors.ErrInvalidInput,
		)
	}

	p, err := uc.transitioner.Apply(ctx, id, cmd, "")
	if err != nil {
		return nil, err
	}

	result, gwErr := uc.callGateway(ctx, p)
	if gwErr == nil {
		return uc.transitioner.Apply(ctx, id, payment.CommandConfirmSuccess, "")
	}

	reason := gwErr.Error()
	if result != nil && result.ErrorMessage != "" {
		reason = result.ErrorMessage
	}

	switch gateway.Classify(gwErr) {
	case gateway.FailurePermanent:
		return uc.transitioner.Apply(ctx, id, payment.CommandConfirmPermanentFailure, reason)
	default:
		return uc.transitioner.Apply(ctx, id, payment.CommandConfirmTransientFailure, reason)
	}
}

func (uc *SubmitPaymentUseCase) callGateway(ctx context.Context, p *payment.Payment) (*gateway.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.submissionTimeout)
	defer cancel()

	return uc.gatewayFactory.Submit(callCtx, uc.gatewayName, gateway.SubmitRequest{
		PaymentID:   p.ID.String(),
		AmountCents: p.Amount.ValueCents,
		Currency:    p.Amount.Currency,
		Attempt:     p.RetryCount,
	})
}
