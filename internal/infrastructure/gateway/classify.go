package gateway

import (
	"context"
	"errors"
	"net"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// FailureClass says whether a downstream failure is worth retrying.
type FailureClass int

const (
	// FailureTransient covers timeouts, connectivity and availability errors.
	FailureTransient FailureClass = iota
	// FailurePermanent covers explicit rejections by the processor.
	FailurePermanent
)

// Classify maps a gateway error to a failure class. Unknown errors count as
// transient: they are retried until the budget runs out rather than
// terminating a payment on a guess.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, domainErrors.ErrGatewayRejected):
		return FailurePermanent
	case errors.Is(err, domainErrors.ErrGatewayTimeout),
		errors.Is(err, domainErrors.ErrGatewayUnavailable),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.DeadlineExceeded):
		return FailureTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}

	return FailureTransient
}
