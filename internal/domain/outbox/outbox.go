package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status is the publish status of an outbox entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Entry is one event awaiting publication. The sequence id is assigned by the
// store and orders events per payment.
type Entry struct {
	SequenceID       int64
	PaymentID        uuid.UUID
	EventType        string
	Payload          []byte
	Status           Status
	AttemptCount     int
	NextAttemptAfter time.Time
	ClaimedBy        *string
	LeaseExpiresAt   *time.Time
	CreatedAt        time.Time
	PublishedAt      *time.Time
}

// NewEntry builds a pending entry. The sequence id is zero until the store
// assigns one on insert.
func NewEntry(paymentID uuid.UUID, eventType string, payload []byte) *Entry {
	return &Entry{
		PaymentID: paymentID,
		EventType: eventType,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}
