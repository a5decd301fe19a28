package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for payments.
type Repository interface {
	// CreateIfAbsent inserts the payment unless one with the same idempotency
	// key already exists, in which case the stored record is returned
	// unchanged and created is false.
	CreateIfAbsent(ctx context.Context, p *Payment) (stored *Payment, created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)

	// UpdateVersioned persists a mutated payment guarded by the version the
	// caller read. It fails with ErrVersionConflict when another writer got
	// there first, and increments the stored version by exactly 1.
	UpdateVersioned(ctx context.Context, p *Payment, expectedVersion int64) error

	// ListStuckSubmitted returns submitted payments whose submission is older
	// than the cutoff, presumed lost.
	ListStuckSubmitted(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error)

	// ListRetryDue returns retryable failures whose next-retry-after time has
	// passed.
	ListRetryDue(ctx context.Context, now time.Time, limit int) ([]*Payment, error)

	// ListCreated returns payments awaiting submission.
	ListCreated(ctx context.Context, limit int) ([]*Payment, error)

	AddEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*Event, error)
}
