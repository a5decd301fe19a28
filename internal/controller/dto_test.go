package controller

import (
	"testing"
	"time"

	"github.com/alpian-ledger/payment-service/internal/domain/payment"
	"github.com/alpian-ledger/payment-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPayment(t *testing.T) {
	p := testutil.NewRetryablePayment(25_00, "CHF", 2)

	resp := FromPayment(p)

	assert.Equal(t, p.ID.String(), resp.ID)
	assert.Equal(t, p.IdempotencyKey, resp.IdempotencyKey)
	assert.Equal(t, int64(2500), resp.AmountCents)
	assert.Equal(t, "CHF", resp.Currency)
	assert.Equal(t, string(payment.StatusFailedRetryable), resp.Status)
	assert.Equal(t, int64(2), resp.Version)
	assert.Equal(t, 2, resp.RetryCount)
	require.NotNil(t, resp.FailureReason)
	assert.Equal(t, *p.FailureReason, *resp.FailureReason)
	require.NotNil(t, resp.NextRetryAt)
}

func TestFromPayment_OmitsUnsetOptionals(t *testing.T) {
	p := testutil.NewTestPayment(25_00, "CHF")

	resp := FromPayment(p)

	assert.Nil(t, resp.FailureReason)
	assert.Nil(t, resp.SubmittedAt)
	assert.Nil(t, resp.NextRetryAt)
	assert.Nil(t, resp.CompletedAt)
}

func TestFromEvent(t *testing.T) {
	p := testutil.NewTestPayment(25_00, "CHF")
	e := payment.NewEvent(p.ID, payment.EventPaymentSettled, map[string]any{"status": "settled"})

	resp := FromEvent(e)

	assert.Equal(t, e.ID.String(), resp.ID)
	assert.Equal(t, p.ID.String(), resp.PaymentID)
	assert.Equal(t, "payment.settled", resp.EventType)
	assert.Equal(t, "settled", resp.EventData["status"])
	assert.WithinDuration(t, time.Now(), resp.CreatedAt, time.Minute)
}
