package scheduler_test

import (
	"context"
	"testing"
	"time"

	paymentApp "github.com/alpian-ledger/payment-service/internal/application/payment"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/gateway"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/alpian-ledger/payment-service/internal/scheduler"
	"github.com/alpian-ledger/payment-service/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type taskFixture struct {
	paymentRepo *testutil.MockPaymentRepository
	outboxRepo  *testutil.MockOutboxRepository
	locks       *fakeLocker
	tasks       *scheduler.Tasks
}

func newTaskFixture(t *testing.T, gw gateway.Gateway) *taskFixture {
	t.Helper()
	paymentRepo := testutil.NewMockPaymentRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	locks := newFakeLocker()
	tr := paymentApp.NewTransitioner(
		paymentRepo, outboxRepo, testutil.NewMockTransactionManager(),
		paymentApp.BackoffPolicy{Base: time.Second, Cap: time.Minute}, 3,
	)
	submitUC := paymentApp.NewSubmitPaymentUseCase(tr, gateway.NewFactory(gw), gw.Name(), time.Second)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	tasks := scheduler.NewTasks(paymentRepo, submitUC, tr, locks, zerolog.Nop(), metrics, 50, time.Second, 5*time.Minute)
	return &taskFixture{paymentRepo: paymentRepo, outboxRepo: outboxRepo, locks: locks, tasks: tasks}
}

func okGateway() gateway.Gateway {
	return gateway.NewMockGateway("test", gateway.WithLatency(time.Millisecond))
}

func TestSubmitCreated_DrivesPaymentToSettled(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewTestPayment(25_00, "CHF")
	f.paymentRepo.Seed(p)

	if err := f.tasks.SubmitCreated(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusSettled {
		t.Errorf("expected settled, got %s", stored.Status)
	}
	if len(f.outboxRepo.Entries()) != 2 {
		t.Errorf("expected submitted+settled outbox entries, got %d", len(f.outboxRepo.Entries()))
	}
}

func TestSubmitCreated_IgnoresNonCreatedPayments(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewSubmittedPayment(25_00, "CHF")
	f.paymentRepo.Seed(p)

	if err := f.tasks.SubmitCreated(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.outboxRepo.Entries()) != 0 {
		t.Error("no work expected for submitted payments")
	}
}

func TestRetryDue_ResubmitsDuePayment(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewRetryablePayment(25_00, "CHF", 1)
	f.paymentRepo.Seed(p)

	if err := f.tasks.RetryDue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusSettled {
		t.Errorf("expected settled after retry, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("retry must not burn budget on its own, got %d", stored.RetryCount)
	}
}

func TestRetryDue_SkipsNotYetDuePayment(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewRetryablePayment(25_00, "CHF", 1)
	p.NextRetryAt = testutil.TimePtr(time.Now().Add(time.Hour))
	f.paymentRepo.Seed(p)

	if err := f.tasks.RetryDue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusFailedRetryable {
		t.Errorf("payment touched before its backoff elapsed: %s", stored.Status)
	}
}

func TestRetryDue_ExhaustsSpentBudget(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewRetryablePayment(25_00, "CHF", 3)
	f.paymentRepo.Seed(p)

	if err := f.tasks.RetryDue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusFailedTerminal {
		t.Errorf("expected failed_terminal, got %s", stored.Status)
	}
	if stored.FailureReason == nil {
		t.Error("expected an exhaustion reason")
	}

	// Exactly one terminal failure event; the payment never re-entered
	// submitted.
	entries := f.outboxRepo.Entries()
	if len(entries) != 1 || entries[0].EventType != string(payment.EventPaymentFailed) {
		t.Fatalf("expected a single payment.failed entry, got %d entries", len(entries))
	}
}

func TestReclaimStuck_ReturnsLostSubmissionToRetryPath(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewSubmittedPayment(25_00, "CHF")
	p.SubmittedAt = testutil.TimePtr(time.Now().Add(-time.Hour))
	f.paymentRepo.Seed(p)

	if err := f.tasks.ReclaimStuck(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusFailedRetryable {
		t.Errorf("expected failed_retryable, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("a reclaim counts as a failed attempt, got %d", stored.RetryCount)
	}
	if stored.FailureReason == nil {
		t.Fatal("expected a reclaim reason")
	}
}

func TestSubmitCreated_SkipsPaymentLockedByAnotherInstance(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	locked := testutil.NewTestPayment(25_00, "CHF")
	free := testutil.NewTestPayment(40_00, "CHF")
	f.paymentRepo.Seed(locked)
	f.paymentRepo.Seed(free)

	// Another instance is already working this payment.
	f.locks.Hold("payment:" + locked.ID.String())

	if err := f.tasks.SubmitCreated(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, locked.ID)
	if stored.Status != payment.StatusCreated {
		t.Errorf("locked payment must be left alone, got %s", stored.Status)
	}
	stored, _ = f.paymentRepo.GetByID(ctx, free.ID)
	if stored.Status != payment.StatusSettled {
		t.Errorf("unlocked payment must still be worked, got %s", stored.Status)
	}
}

func TestSubmitCreated_ReleasesPaymentLock(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewTestPayment(25_00, "CHF")
	f.paymentRepo.Seed(p)

	if err := f.tasks.SubmitCreated(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The pass is done with the payment, so its lock must be free again for
	// the next instance that needs it.
	lease, err := f.locks.Acquire(ctx, "payment:"+p.ID.String(), time.Second)
	if err != nil {
		t.Fatalf("payment lock not released after the pass: %v", err)
	}
	lease.Release(ctx)
}

func TestReclaimStuck_LeavesFreshSubmissionsAlone(t *testing.T) {
	ctx := context.Background()
	f := newTaskFixture(t, okGateway())

	p := testutil.NewSubmittedPayment(25_00, "CHF")
	f.paymentRepo.Seed(p)

	if err := f.tasks.ReclaimStuck(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.paymentRepo.GetByID(ctx, p.ID)
	if stored.Status != payment.StatusSubmitted {
		t.Errorf("fresh submission must not be reclaimed: %s", stored.Status)
	}
}
