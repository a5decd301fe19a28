package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/google/uuid"
)

type MockGateway struct {
	name        string
	failureRate float64 // 0.0 to 1.0, transient failures
	rejectRate  float64 // 0.0 to 1.0, permanent rejections
	timeoutRate float64 // 0.0 to 1.0
	latency     time.Duration
}

type MockGatewayOption func(*MockGateway)

func WithFailureRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.failureRate = rate }
}

func WithRejectRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.rejectRate = rate }
}

func WithTimeoutRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func NewMockGateway(name string, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:        name,
		failureRate: 0.0,
		rejectRate:  0.0,
		timeoutRate: 0.0,
		latency:     100 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	// Simulate latency
	select {
	case <-time.After(g.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Simulate timeout
	if rand.Float64() < g.timeoutRate {
		return nil, domainErrors.ErrGatewayTimeout
	}

	// Simulate permanent rejection
	if rand.Float64() < g.rejectRate {
		return &Result{
			Status:       "rejected",
			ErrorMessage: fmt.Sprintf("%s: payment %s declined", g.name, req.PaymentID),
		}, domainErrors.ErrGatewayRejected
	}

	// Simulate transient failure
	if rand.Float64() < g.failureRate {
		return nil, fmt.Errorf("%s: processing payment %s: %w", g.name, req.PaymentID, domainErrors.ErrGatewayUnavailable)
	}

	return &Result{
		TransactionID: fmt.Sprintf("%s_txn_%s", g.name, uuid.New().String()[:8]),
		Status:        "accepted",
	}, nil
}
