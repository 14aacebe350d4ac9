package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/traceline/payment-service/internal/domain/model"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    model.PaymentStatus
		to      model.PaymentStatus
		allowed bool
	}{
		{model.PaymentStatusPending, model.PaymentStatusApproved, true},
		{model.PaymentStatusPending, model.PaymentStatusCancelled, true},
		{model.PaymentStatusPending, model.PaymentStatusFailed, true},
		{model.PaymentStatusPending, model.PaymentStatusCompleted, false},
		{model.PaymentStatusApproved, model.PaymentStatusCompleted, true},
		{model.PaymentStatusApproved, model.PaymentStatusCancelled, true},
		{model.PaymentStatusApproved, model.PaymentStatusFailed, true},
		{model.PaymentStatusApproved, model.PaymentStatusPending, false},
		{model.PaymentStatusCompleted, model.PaymentStatusApproved, false},
		{model.PaymentStatusCancelled, model.PaymentStatusApproved, false},
		{model.PaymentStatusExpired, model.PaymentStatusApproved, false},
		{model.PaymentStatusRefunded, model.PaymentStatusApproved, false},
		{model.PaymentStatusFailed, model.PaymentStatusApproved, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.True(t, model.PaymentStatusCancelled.IsTerminal())
	assert.True(t, model.PaymentStatusExpired.IsTerminal())
	assert.True(t, model.PaymentStatusRefunded.IsTerminal())

	// completed is not terminal: refunded is still reachable
	assert.False(t, model.PaymentStatusCompleted.IsTerminal())
	assert.False(t, model.PaymentStatusPending.IsTerminal())
	assert.False(t, model.PaymentStatusFailed.IsTerminal())
}

func TestPayment_IsExpired(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	pending := &model.Payment{Status: model.PaymentStatusPending, ExpiresAt: deadline}
	assert.False(t, pending.IsExpired(deadline.Add(-time.Second)))
	assert.False(t, pending.IsExpired(deadline))
	assert.True(t, pending.IsExpired(deadline.Add(time.Second)))

	// Only pending payments expire.
	approved := &model.Payment{Status: model.PaymentStatusApproved, ExpiresAt: deadline}
	assert.False(t, approved.IsExpired(deadline.Add(time.Hour)))
}

func TestPayment_CanRetry(t *testing.T) {
	payment := &model.Payment{Status: model.PaymentStatusFailed, RetryCount: 2, MaxRetries: 3}
	assert.True(t, payment.CanRetry())

	payment.RetryCount = 3
	assert.False(t, payment.CanRetry())

	payment.RetryCount = 0
	payment.Status = model.PaymentStatusPending
	assert.False(t, payment.CanRetry())
}

// The value lists feed the store's enum type creation; a declared constant
// missing from them would make every write of that value fail at the store.
func TestEnumValueSetsCoverDeclaredConstants(t *testing.T) {
	statuses := model.PaymentStatusValues()
	for _, s := range []model.PaymentStatus{
		model.PaymentStatusPending, model.PaymentStatusApproved,
		model.PaymentStatusCompleted, model.PaymentStatusCancelled,
		model.PaymentStatusExpired, model.PaymentStatusFailed,
		model.PaymentStatusRefunded,
	} {
		assert.Contains(t, statuses, s)
	}
	assert.Len(t, statuses, 7)

	webhookStates := model.WebhookStatusValues()
	for _, w := range []model.WebhookStatus{
		model.WebhookStatusPending, model.WebhookStatusSent,
		model.WebhookStatusFailed, model.WebhookStatusRetrying,
	} {
		assert.Contains(t, webhookStates, w)
	}
	assert.Len(t, webhookStates, 4)
}

func TestValidCurrency(t *testing.T) {
	for _, code := range []string{"PI", "USD", "EUR", "GBP"} {
		assert.True(t, model.ValidCurrency(code), code)
	}
	for _, code := range []string{"", "pi", "KRW", "BTC"} {
		assert.False(t, model.ValidCurrency(code), code)
	}
}
