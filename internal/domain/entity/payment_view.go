package entity

import (
	"fmt"
	"time"

	"github.com/traceline/payment-service/internal/domain/model"
)

// PaymentView is the sanitized projection of a payment returned to API
// callers. Derived fields are computed here, never stored.
type PaymentView struct {
	ID                string              `json:"id"`
	Identifier        *string             `json:"identifier,omitempty"`
	Owner             model.Owner         `json:"owner"`
	Amount            string              `json:"amount"`
	Currency          string              `json:"currency"`
	Memo              string              `json:"memo,omitempty"`
	ProductRef        *model.ProductRef   `json:"product_ref,omitempty"`
	ServiceRef        *model.ServiceRef   `json:"service_ref,omitempty"`
	Status            model.PaymentStatus `json:"status"`
	StatusDescription string              `json:"status_description"`
	FormattedAmount   string              `json:"formatted_amount"`
	AgeInMinutes      int64               `json:"age_in_minutes"`
	IsExpired         bool                `json:"is_expired"`
	ExpiresAt         time.Time           `json:"expires_at"`
	RetryCount        int                 `json:"retry_count"`
	MaxRetries        int                 `json:"max_retries"`
	LastError         *model.ErrorDetail  `json:"last_error,omitempty"`
	Refund            *model.RefundDetail `json:"refund,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

var statusDescriptions = map[model.PaymentStatus]string{
	model.PaymentStatusPending:   "Awaiting approval",
	model.PaymentStatusApproved:  "Approved, awaiting completion",
	model.PaymentStatusCompleted: "Payment completed",
	model.PaymentStatusCancelled: "Cancelled by user or merchant",
	model.PaymentStatusExpired:   "Expired before approval",
	model.PaymentStatusFailed:    "Payment failed",
	model.PaymentStatusRefunded:  "Refunded",
}

// NewPaymentView builds the public projection of p at the given time.
// Internal transaction payloads and the metadata bag are stripped.
func NewPaymentView(p *model.Payment, now time.Time) *PaymentView {
	return &PaymentView{
		ID:                p.ID,
		Identifier:        p.Identifier,
		Owner:             p.Owner,
		Amount:            p.Amount.String(),
		Currency:          p.Currency,
		Memo:              p.Memo,
		ProductRef:        p.ProductRef,
		ServiceRef:        p.ServiceRef,
		Status:            p.Status,
		StatusDescription: statusDescriptions[p.Status],
		FormattedAmount:   fmt.Sprintf("%s %s", p.Amount.StringFixed(2), p.Currency),
		AgeInMinutes:      int64(now.Sub(p.CreatedAt) / time.Minute),
		IsExpired:         now.After(p.ExpiresAt),
		ExpiresAt:         p.ExpiresAt,
		RetryCount:        p.RetryCount,
		MaxRetries:        p.MaxRetries,
		LastError:         p.LastError,
		Refund:            p.Refund,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// NewPaymentViews projects a list of payments at the same instant.
func NewPaymentViews(payments []*model.Payment, now time.Time) []*PaymentView {
	views := make([]*PaymentView, len(payments))
	for i, p := range payments {
		views[i] = NewPaymentView(p, now)
	}
	return views
}
