package outbox

import (
	"context"
	"time"
)

// Repository defines the persistence interface for the transactional outbox.
type Repository interface {
	// Enqueue inserts a pending entry and assigns its sequence id. It must be
	// called inside the same transaction as the payment write it describes.
	Enqueue(ctx context.Context, entry *Entry) error

	// ClaimBatch atomically marks up to limit pending-or-lease-expired entries
	// as claimed by claimedBy with the given lease, returning them ordered by
	// sequence id (oldest first). An entry with an earlier unpublished entry
	// for the same payment is never claimable, keeping per-payment publish
	// order across batches.
	ClaimBatch(ctx context.Context, claimedBy string, limit int, lease time.Duration) ([]*Entry, error)

	// MarkPublished records a confirmed send. It only applies while claimedBy
	// still holds the claim; a lost lease surfaces as ErrLockNotHeld.
	MarkPublished(ctx context.Context, sequenceID int64, claimedBy string) error

	// MarkFailed releases the claim and defers the next attempt by backoff,
	// under the same holder guard as MarkPublished.
	MarkFailed(ctx context.Context, sequenceID int64, claimedBy string, backoff time.Duration) error
}
