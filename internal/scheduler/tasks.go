package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	app "github.com/alpian-ledger/payment-service/internal/application/payment"
	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Canonical task names.
const (
	TaskSubmitCreated = "submit_created"
	TaskRetryDue      = "retry_due"
	TaskReclaimStuck  = "reclaim_stuck_submissions"
)

// Tasks holds the recurring payment maintenance passes: submitting new
// payments, re-driving due retries, and reclaiming submissions whose
// confirmation never arrived. Each candidate payment is worked under its own
// distributed lock, so concurrent instances scanning the same backlog split
// the payments between them; a payment locked elsewhere is skipped and caught
// on a later pass.
type Tasks struct {
	paymentRepo  payment.Repository
	submitUC     *app.SubmitPaymentUseCase
	transitioner *app.Transitioner
	locks        Locker
	logger       zerolog.Logger
	metrics      *observability.Metrics
	scanLimit    int
	lockTTL      time.Duration
	stuckAfter   time.Duration
}

func NewTasks(
	paymentRepo payment.Repository,
	submitUC *app.SubmitPaymentUseCase,
	transitioner *app.Transitioner,
	locks Locker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	scanLimit int,
	lockTTL time.Duration,
	stuckAfter time.Duration,
) *Tasks {
	if scanLimit <= 0 {
		scanLimit = 50
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}
	return &Tasks{
		paymentRepo:  paymentRepo,
		submitUC:     submitUC,
		transitioner: transitioner,
		locks:        locks,
		logger:       logger.With().Str("component", "scheduler_tasks").Logger(),
		metrics:      metrics,
		scanLimit:    scanLimit,
		lockTTL:      lockTTL,
		stuckAfter:   stuckAfter,
	}
}

// RegisterAll binds every task to its canonical name.
func (t *Tasks) RegisterAll(r *Registry) error {
	if err := r.Register(TaskSubmitCreated, t.SubmitCreated); err != nil {
		return err
	}
	if err := r.Register(TaskRetryDue, t.RetryDue); err != nil {
		return err
	}
	return r.Register(TaskReclaimStuck, t.ReclaimStuck)
}

// SubmitCreated drives created payments through their first submission.
func (t *Tasks) SubmitCreated(ctx context.Context) error {
	payments, err := t.paymentRepo.ListCreated(ctx, t.scanLimit)
	if err != nil {
		return fmt.Errorf("list created payments: %w", err)
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.withPaymentLock(ctx, p.ID, func(ctx context.Context) {
			result, err := t.submitUC.Execute(ctx, p.ID, payment.CommandSubmit)
			if err != nil {
				if lostRace(err) {
					t.logger.Debug().Str("payment_id", p.ID.String()).Msg("Payment no longer in created, skipping")
					return
				}
				t.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Submission failed")
				return
			}
			t.metrics.SchedulerActions.WithLabelValues(TaskSubmitCreated, string(result.Status)).Inc()
		})
	}
	return nil
}

// RetryDue re-submits retryable failures whose backoff has elapsed, and
// terminates those whose retry budget is spent.
func (t *Tasks) RetryDue(ctx context.Context) error {
	payments, err := t.paymentRepo.ListRetryDue(ctx, time.Now(), t.scanLimit)
	if err != nil {
		return fmt.Errorf("list due retries: %w", err)
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.withPaymentLock(ctx, p.ID, func(ctx context.Context) {
			if p.RetryCount >= p.MaxRetries {
				t.exhaust(ctx, p)
				return
			}

			result, err := t.submitUC.Execute(ctx, p.ID, payment.CommandRetry)
			if err != nil {
				if errors.Is(err, domainErrors.ErrRetriesExhausted) {
					// The budget ran out between the list and the retry.
					t.exhaust(ctx, p)
					return
				}
				if lostRace(err) {
					t.logger.Debug().Str("payment_id", p.ID.String()).Msg("Payment no longer retryable, skipping")
					return
				}
				t.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Retry failed")
				return
			}
			t.metrics.SchedulerActions.WithLabelValues(TaskRetryDue, string(result.Status)).Inc()
		})
	}
	return nil
}

// ReclaimStuck fails submissions that have sat unconfirmed past the stuck
// threshold, returning them to the retry path. The payment keeps its version
// guard, so a late confirmation racing the reclaim cannot double-apply.
func (t *Tasks) ReclaimStuck(ctx context.Context) error {
	cutoff := time.Now().Add(-t.stuckAfter)
	payments, err := t.paymentRepo.ListStuckSubmitted(ctx, cutoff, t.scanLimit)
	if err != nil {
		return fmt.Errorf("list stuck submissions: %w", err)
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.withPaymentLock(ctx, p.ID, func(ctx context.Context) {
			reason := fmt.Sprintf("submission unconfirmed after %s", t.stuckAfter)
			if _, err := t.transitioner.Apply(ctx, p.ID, payment.CommandConfirmTransientFailure, reason); err != nil {
				if lostRace(err) {
					t.logger.Debug().Str("payment_id", p.ID.String()).Msg("Submission confirmed elsewhere, skipping")
					return
				}
				t.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Reclaim failed")
				return
			}
			t.logger.Warn().Str("payment_id", p.ID.String()).Str("reason", reason).Msg("Reclaimed stuck submission")
			t.metrics.SchedulerActions.WithLabelValues(TaskReclaimStuck, "reclaimed").Inc()
		})
	}
	return nil
}

// withPaymentLock runs fn while holding the payment's distributed lock. A
// payment another instance is already working on is skipped, not an error.
func (t *Tasks) withPaymentLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context)) {
	lock, err := t.locks.Acquire(ctx, "payment:"+id.String(), t.lockTTL)
	if err != nil {
		if errors.Is(err, domainErrors.ErrLockUnavailable) {
			t.metrics.LockContention.Inc()
			t.logger.Debug().Str("payment_id", id.String()).Msg("Payment locked elsewhere, skipping")
			return
		}
		t.logger.Error().Err(err).Str("payment_id", id.String()).Msg("Lock acquisition failed")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			t.logger.Warn().Err(err).Str("payment_id", id.String()).Msg("Lock release failed")
		}
	}()
	fn(ctx)
}

func (t *Tasks) exhaust(ctx context.Context, p *payment.Payment) {
	if _, err := t.transitioner.Apply(ctx, p.ID, payment.CommandExhaustRetries, ""); err != nil {
		if lostRace(err) {
			return
		}
		t.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Exhaust failed")
		return
	}
	t.logger.Info().
		Str("payment_id", p.ID.String()).
		Int("retry_count", p.RetryCount).
		Msg("Retry budget exhausted, payment failed terminally")
	t.metrics.SchedulerActions.WithLabelValues(TaskRetryDue, "exhausted").Inc()
}

// lostRace reports whether the error means another writer already moved the
// payment on: the scheduler treats these as skips, not failures.
func lostRace(err error) bool {
	return errors.Is(err, domainErrors.ErrInvalidTransition) ||
		errors.Is(err, domainErrors.ErrVersionConflict) ||
		errors.Is(err, domainErrors.ErrPaymentNotFound)
}
