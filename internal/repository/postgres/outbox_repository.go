package postgres

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository implements outbox.Repository using PostgreSQL.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Enqueue inserts a pending entry and assigns its sequence id. The caller
// must invoke it inside the same transaction as the payment write.
func (r *OutboxRepository) Enqueue(ctx context.Context, entry *outbox.Entry) error {
	if !InTx(ctx) {
		return fmt.Errorf("outbox enqueue outside transaction")
	}
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO outbox (payment_id, event_type, payload, status, attempt_count, next_attempt_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING sequence_id`,
		entry.PaymentID, entry.EventType, entry.Payload,
		string(entry.Status), entry.AttemptCount, entry.CreatedAt, entry.CreatedAt,
	).Scan(&entry.SequenceID)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ClaimBatch marks up to limit claimable entries as leased by claimedBy and
// returns them ordered by sequence id. An entry is claimable when it is
// awaiting publication, its next attempt time has passed, no unexpired lease
// is held on it, and no earlier entry for the same payment is still
// unpublished: a deferred or in-flight predecessor blocks its successors so
// per-payment publish order holds across batches. SKIP LOCKED keeps
// concurrent publishers from blocking on each other.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, claimedBy string, limit int, lease time.Duration) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	var entries []*outbox.Entry
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT sequence_id, payment_id, event_type, payload, status, attempt_count,
			        next_attempt_after, claimed_by, lease_expires_at, created_at, published_at
			 FROM outbox o
			 WHERE status IN ('pending', 'failed')
			   AND next_attempt_after <= NOW()
			   AND (lease_expires_at IS NULL OR lease_expires_at <= NOW())
			   AND NOT EXISTS (
			     SELECT 1 FROM outbox prior
			     WHERE prior.payment_id = o.payment_id
			       AND prior.sequence_id < o.sequence_id
			       AND prior.status <> 'published'
			   )
			 ORDER BY sequence_id ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED`, limit,
		)
		if err != nil {
			return fmt.Errorf("select claimable entries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			e := &outbox.Entry{}
			var status string
			if err := rows.Scan(&e.SequenceID, &e.PaymentID, &e.EventType, &e.Payload, &status, &e.AttemptCount,
				&e.NextAttemptAfter, &e.ClaimedBy, &e.LeaseExpiresAt, &e.CreatedAt, &e.PublishedAt); err != nil {
				return fmt.Errorf("scan outbox entry: %w", err)
			}
			e.Status = outbox.Status(status)
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.SequenceID)
		}

		expiry := time.Now().Add(lease)
		_, err = tx.Exec(ctx,
			`UPDATE outbox SET claimed_by = $1, lease_expires_at = $2, attempt_count = attempt_count + 1
			 WHERE sequence_id = ANY($3)`,
			claimedBy, expiry, ids,
		)
		if err != nil {
			return fmt.Errorf("lease outbox entries: %w", err)
		}

		for _, e := range entries {
			e.ClaimedBy = &claimedBy
			e.LeaseExpiresAt = &expiry
			e.AttemptCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkPublished records a confirmed send and releases the lease. The update
// is guarded by claimedBy: a marker whose lease already expired and was
// re-claimed elsewhere gets ErrLockNotHeld instead of clobbering the live
// claim.
func (r *OutboxRepository) MarkPublished(ctx context.Context, sequenceID int64, claimedBy string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = 'published', published_at = NOW(), claimed_by = NULL, lease_expires_at = NULL
		 WHERE sequence_id = $1 AND claimed_by = $2`, sequenceID, claimedBy,
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMarkMiss(ctx, sequenceID)
	}
	return nil
}

// MarkFailed releases the lease and defers the next attempt by backoff. Like
// MarkPublished it only touches entries still claimed by claimedBy.
func (r *OutboxRepository) MarkFailed(ctx context.Context, sequenceID int64, claimedBy string, backoff time.Duration) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = 'failed', claimed_by = NULL, lease_expires_at = NULL,
		        next_attempt_after = NOW() + $1
		 WHERE sequence_id = $2 AND claimed_by = $3`, backoff, sequenceID, claimedBy,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMarkMiss(ctx, sequenceID)
	}
	return nil
}

// classifyMarkMiss distinguishes a missing entry from a claim that is no
// longer ours.
func (r *OutboxRepository) classifyMarkMiss(ctx context.Context, sequenceID int64) error {
	var exists bool
	if err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM outbox WHERE sequence_id = $1)`, sequenceID).Scan(&exists); err != nil {
		return fmt.Errorf("check outbox entry existence: %w", err)
	}
	if !exists {
		return domainErrors.ErrEntryNotFound
	}
	return domainErrors.ErrLockNotHeld
}
