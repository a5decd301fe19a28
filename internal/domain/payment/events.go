package payment

import (
	"time"

	"github.com/google/uuid"
)

// Event is an audit record of a lifecycle transition applied to a payment.
type Event struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType EventType
	EventData map[string]any
	CreatedAt time.Time
}

// NewEvent builds an audit event for the given payment and type.
func NewEvent(paymentID uuid.UUID, eventType EventType, data map[string]any) *Event {
	return &Event{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		EventData: data,
		CreatedAt: time.Now(),
	}
}
