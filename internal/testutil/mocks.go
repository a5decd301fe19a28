package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/domain/outbox"
	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository. It clones records
// on every read and write so version guards behave like they do against a
// real database: mutating a returned payment does not mutate the store.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
	byKey    map[string]uuid.UUID
	events   map[uuid.UUID][]*payment.Event

	CreateIfAbsentFunc  func(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error)
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	UpdateVersionedFunc func(ctx context.Context, p *payment.Payment, expectedVersion int64) error
	AddEventFunc        func(ctx context.Context, event *payment.Event) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
		byKey:    make(map[string]uuid.UUID),
		events:   make(map[uuid.UUID][]*payment.Event),
	}
}

// Seed pre-populates the store with a payment.
func (m *MockPaymentRepository) Seed(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = clonePayment(p)
	m.byKey[p.IdempotencyKey] = p.ID
}

func (m *MockPaymentRepository) CreateIfAbsent(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[p.IdempotencyKey]; ok {
		return clonePayment(m.payments[id]), false, nil
	}
	m.payments[p.ID] = clonePayment(p)
	m.byKey[p.IdempotencyKey] = p.ID
	return clonePayment(p), true, nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return clonePayment(m.payments[id]), nil
}

func (m *MockPaymentRepository) UpdateVersioned(ctx context.Context, p *payment.Payment, expectedVersion int64) error {
	if m.UpdateVersionedFunc != nil {
		return m.UpdateVersionedFunc(ctx, p, expectedVersion)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[p.ID]
	if !ok {
		return domainErrors.ErrPaymentNotFound
	}
	if stored.Version != expectedVersion {
		return domainErrors.ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *MockPaymentRepository) ListStuckSubmitted(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*payment.Payment
	for _, p := range m.payments {
		if p.Status == payment.StatusSubmitted && p.SubmittedAt != nil && p.SubmittedAt.Before(cutoff) {
			result = append(result, clonePayment(p))
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MockPaymentRepository) ListRetryDue(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*payment.Payment
	for _, p := range m.payments {
		if p.RetryDue(now) {
			result = append(result, clonePayment(p))
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MockPaymentRepository) ListCreated(ctx context.Context, limit int) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*payment.Payment
	for _, p := range m.payments {
		if p.Status == payment.StatusCreated {
			result = append(result, clonePayment(p))
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MockPaymentRepository) AddEvent(ctx context.Context, event *payment.Event) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.PaymentID] = append(m.events[event.PaymentID], event)
	return nil
}

func (m *MockPaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*payment.Event(nil), m.events[paymentID]...), nil
}

func clonePayment(p *payment.Payment) *payment.Payment {
	c := *p
	if p.FailureReason != nil {
		r := *p.FailureReason
		c.FailureReason = &r
	}
	if p.SubmittedAt != nil {
		t := *p.SubmittedAt
		c.SubmittedAt = &t
	}
	if p.NextRetryAt != nil {
		t := *p.NextRetryAt
		c.NextRetryAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory outbox.Repository with a monotonically
// increasing sequence.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry
	nextSeq int64

	EnqueueFunc       func(ctx context.Context, entry *outbox.Entry) error
	ClaimBatchFunc    func(ctx context.Context, claimedBy string, limit int, lease time.Duration) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, sequenceID int64, claimedBy string) error
	MarkFailedFunc    func(ctx context.Context, sequenceID int64, claimedBy string, backoff time.Duration) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{nextSeq: 1}
}

func (m *MockOutboxRepository) Enqueue(ctx context.Context, entry *outbox.Entry) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.SequenceID = m.nextSeq
	m.nextSeq++
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) ClaimBatch(ctx context.Context, claimedBy string, limit int, lease time.Duration) ([]*outbox.Entry, error) {
	if m.ClaimBatchFunc != nil {
		return m.ClaimBatchFunc(ctx, claimedBy, limit, lease)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var claimed []*outbox.Entry
	// An unpublished entry blocks every later entry of its payment, so
	// per-payment publish order holds across claim batches.
	blocked := make(map[uuid.UUID]bool)
	for _, e := range m.entries {
		if len(claimed) >= limit {
			break
		}
		if e.Status == outbox.StatusPublished {
			continue
		}
		if blocked[e.PaymentID] {
			continue
		}
		if e.NextAttemptAfter.After(now) || (e.LeaseExpiresAt != nil && e.LeaseExpiresAt.After(now)) {
			blocked[e.PaymentID] = true
			continue
		}
		expires := now.Add(lease)
		holder := claimedBy
		e.ClaimedBy = &holder
		e.LeaseExpiresAt = &expires
		e.AttemptCount++
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, sequenceID int64, claimedBy string) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, sequenceID, claimedBy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.SequenceID == sequenceID {
			if e.ClaimedBy == nil || *e.ClaimedBy != claimedBy {
				return domainErrors.ErrLockNotHeld
			}
			now := time.Now()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
			e.ClaimedBy = nil
			e.LeaseExpiresAt = nil
			return nil
		}
	}
	return domainErrors.ErrEntryNotFound
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, sequenceID int64, claimedBy string, backoff time.Duration) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, sequenceID, claimedBy, backoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.SequenceID == sequenceID {
			if e.ClaimedBy == nil || *e.ClaimedBy != claimedBy {
				return domainErrors.ErrLockNotHeld
			}
			e.Status = outbox.StatusFailed
			e.NextAttemptAfter = time.Now().Add(backoff)
			e.ClaimedBy = nil
			e.LeaseExpiresAt = nil
			return nil
		}
	}
	return domainErrors.ErrEntryNotFound
}

// Entries returns a snapshot of every entry ever enqueued, in sequence order.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

// --- Transaction Manager Mock ---

// MockTransactionManager runs the callback directly. BeginFunc, when set,
// runs before the callback and can inject a failure.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.BeginFunc != nil {
		if err := m.BeginFunc(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}

// --- Bus Mock ---

// PublishedMessage is one message recorded by FakeBus.
type PublishedMessage struct {
	Topic   string
	Key     string
	Payload []byte
}

// FakeBus records published messages in order. PublishFunc, when set,
// replaces the default behavior entirely.
type FakeBus struct {
	mu       sync.Mutex
	messages []PublishedMessage

	PublishFunc func(ctx context.Context, topic, key string, payload []byte) error
}

func (b *FakeBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if b.PublishFunc != nil {
		return b.PublishFunc(ctx, topic, key, payload)
	}
	b.record(topic, key, payload)
	return nil
}

// Record appends a message, for use from a custom PublishFunc.
func (b *FakeBus) Record(topic, key string, payload []byte) {
	b.record(topic, key, payload)
}

func (b *FakeBus) record(topic, key string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, PublishedMessage{Topic: topic, Key: key, Payload: payload})
}

// Messages returns the messages published so far, in order.
func (b *FakeBus) Messages() []PublishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PublishedMessage(nil), b.messages...)
}
