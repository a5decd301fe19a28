package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, idempotency_key, amount_cents, currency, status, version,
	        retry_count, max_retries, failure_reason, submitted_at, next_retry_at,
	        created_at, updated_at, completed_at`

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// CreateIfAbsent inserts the payment unless the idempotency key is already
// taken, in which case the stored record is returned unchanged.
func (r *PaymentRepository) CreateIfAbsent(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payments
		 (id, idempotency_key, amount_cents, currency, status, version,
		  retry_count, max_retries, failure_reason, submitted_at, next_retry_at,
		  created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		p.ID, p.IdempotencyKey, p.Amount.ValueCents, p.Amount.Currency, string(p.Status), p.Version,
		p.RetryCount, p.MaxRetries, p.FailureReason, p.SubmittedAt, p.NextRetryAt,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Raced with a concurrent insert on the same key.
			existing, getErr := r.GetByIdempotencyKey(ctx, p.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.GetByIdempotencyKey(ctx, p.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return p, true, nil
}

// GetByID retrieves a payment by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// GetByIdempotencyKey retrieves a payment by idempotency key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key))
}

// UpdateVersioned persists a mutated payment guarded by the version the
// caller read. The stored version is incremented by exactly 1; a mismatch
// fails with ErrVersionConflict so the caller can re-read and retry.
func (r *PaymentRepository) UpdateVersioned(ctx context.Context, p *payment.Payment, expectedVersion int64) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  status=$1, version=version+1, retry_count=$2, failure_reason=$3,
		  submitted_at=$4, next_retry_at=$5, updated_at=$6, completed_at=$7
		 WHERE id=$8 AND version=$9`,
		string(p.Status), p.RetryCount, p.FailureReason,
		p.SubmittedAt, p.NextRetryAt, p.UpdatedAt, p.CompletedAt,
		p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost version race.
		var exists bool
		if err := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check payment existence: %w", err)
		}
		if !exists {
			return domainErrors.ErrPaymentNotFound
		}
		return domainErrors.ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	return nil
}

// ListStuckSubmitted returns submitted payments older than the cutoff.
func (r *PaymentRepository) ListStuckSubmitted(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	return r.listByQuery(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND submitted_at < $2
		 ORDER BY submitted_at ASC LIMIT $3`,
		string(payment.StatusSubmitted), cutoff, normalizeLimit(limit))
}

// ListRetryDue returns retryable failures whose next-retry-after has passed.
func (r *PaymentRepository) ListRetryDue(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	return r.listByQuery(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
		 ORDER BY next_retry_at ASC NULLS FIRST LIMIT $3`,
		string(payment.StatusFailedRetryable), now, normalizeLimit(limit))
}

// ListCreated returns payments awaiting submission.
func (r *PaymentRepository) ListCreated(ctx context.Context, limit int) ([]*payment.Payment, error) {
	return r.listByQuery(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(payment.StatusCreated), normalizeLimit(limit))
}

func (r *PaymentRepository) listByQuery(ctx context.Context, query string, args ...any) ([]*payment.Payment, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// AddEvent inserts a payment audit event.
func (r *PaymentRepository) AddEvent(ctx context.Context, event *payment.Event) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_events (id, payment_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.PaymentID, string(event.EventType), data, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// GetEvents retrieves the audit events for a payment, oldest first.
func (r *PaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.Event, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, payment_id, event_type, event_data, created_at
		 FROM payment_events WHERE payment_id = $1 ORDER BY created_at ASC`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []*payment.Event
	for rows.Next() {
		e := &payment.Event{}
		var eventType string
		var data []byte
		if err := rows.Scan(&e.ID, &e.PaymentID, &eventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = payment.EventType(eventType)
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// scanPayment scans a payment from any source implementing the scanner interface.
func (r *PaymentRepository) scanPayment(s scanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	var status string
	err := s.Scan(
		&p.ID, &p.IdempotencyKey, &p.Amount.ValueCents, &p.Amount.Currency, &status, &p.Version,
		&p.RetryCount, &p.MaxRetries, &p.FailureReason, &p.SubmittedAt, &p.NextRetryAt,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = payment.Status(status)
	return p, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
