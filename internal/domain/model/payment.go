package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// statusSuccessors is the legal transition graph. pending, expired and
// refunded never appear as targets here: they are reachable only through
// the dedicated Retry, Reap and Refund operations.
var statusSuccessors = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusApproved, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusApproved: {PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusFailed},
}

// CanTransitionTo reports whether target is a legal successor of s via
// the generic Transition operation.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, next := range statusSuccessors[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
// completed is not terminal because refunded is reachable from it.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCancelled, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentStatusValues lists every status the store's enum type must accept.
func PaymentStatusValues() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusPending, PaymentStatusApproved, PaymentStatusCompleted,
		PaymentStatusCancelled, PaymentStatusExpired, PaymentStatusFailed,
		PaymentStatusRefunded,
	}
}

// WebhookStatus tracks delivery state of wallet-network status callbacks
type WebhookStatus string

const (
	WebhookStatusPending  WebhookStatus = "pending"
	WebhookStatusSent     WebhookStatus = "sent"
	WebhookStatusFailed   WebhookStatus = "failed"
	WebhookStatusRetrying WebhookStatus = "retrying"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookStatusValues lists every delivery state the store's enum type must
// accept.
func WebhookStatusValues() []WebhookStatus {
	return []WebhookStatus{
		WebhookStatusPending, WebhookStatusSent, WebhookStatusFailed,
		WebhookStatusRetrying,
	}
}

// Currency codes accepted by the lifecycle manager
const (
	CurrencyPI  = "PI"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
)

// ValidCurrency reports whether code is part of the fixed enumeration.
func ValidCurrency(code string) bool {
	switch code {
	case CurrencyPI, CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}

// Owner is the snapshot of the paying user taken at creation time.
// Never re-synced afterwards; payments are historical records.
type Owner struct {
	UID           string `gorm:"column:uid;not null;size:100;index" json:"uid"`
	DisplayName   string `gorm:"column:display_name;size:200" json:"display_name"`
	WalletAddress string `gorm:"column:wallet_address;size:100" json:"wallet_address"`
}

// ProductRef references a tracked physical product
type ProductRef struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Quantity  int    `json:"quantity"`
}

// Value implements driver.Valuer interface
func (p ProductRef) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface
func (p *ProductRef) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// ServiceRef references a purchased service
type ServiceRef struct {
	ServiceType string   `json:"service_type"`
	Description string   `json:"description"`
	Duration    string   `json:"duration,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// Value implements driver.Valuer interface
func (s ServiceRef) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface
func (s *ServiceRef) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// ErrorDetail records the most recent failure of a payment
type ErrorDetail struct {
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Value implements driver.Valuer interface
func (e ErrorDetail) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner interface
func (e *ErrorDetail) Scan(src interface{}) error {
	return scanJSON(src, e)
}

// RefundDetail records a processed refund
type RefundDetail struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Value implements driver.Valuer interface
func (r RefundDetail) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner interface
func (r *RefundDetail) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// TransactionData is the wallet-network transaction payload merged on
// completion. Internal only: stripped from the public view.
type TransactionData struct {
	TxID     string `json:"txid,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Link     string `json:"_link,omitempty"`
}

// Value implements driver.Valuer interface
func (t TransactionData) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner interface
func (t *TransactionData) Scan(src interface{}) error {
	return scanJSON(src, t)
}

func scanJSON(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return nil
}

// Payment is the central entity owned by the lifecycle manager.
// Payments are an append-only audit trail: refund and cancellation are
// terminal statuses, never deletions.
type Payment struct {
	ID         string  `gorm:"primaryKey;size:64" json:"id"`
	Identifier *string `gorm:"size:128" json:"identifier,omitempty"` // sparse-unique, see migrate.go
	Owner      Owner   `gorm:"embedded;embeddedPrefix:owner_" json:"owner"`

	Amount   decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null;default:'PI'" json:"currency"`
	Memo     string          `gorm:"size:500" json:"memo,omitempty"`

	// Exactly one of ProductRef / ServiceRef may be set (generic payment
	// otherwise); enforced at validation time.
	ProductRef *ProductRef `gorm:"type:jsonb" json:"product_ref,omitempty"`
	ServiceRef *ServiceRef `gorm:"type:jsonb" json:"service_ref,omitempty"`

	Status    PaymentStatus `gorm:"type:payment_status;not null;default:'pending';index" json:"status"`
	ExpiresAt time.Time     `gorm:"not null" json:"expires_at"`

	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	RetryCount int          `gorm:"default:0" json:"retry_count"`
	MaxRetries int          `gorm:"default:3" json:"max_retries"`
	LastError  *ErrorDetail `gorm:"type:jsonb" json:"last_error,omitempty"`

	WebhookStatus   WebhookStatus `gorm:"type:webhook_status;not null;default:'pending'" json:"webhook_status"`
	WebhookAttempts int           `gorm:"default:0" json:"webhook_attempts"`

	Refund      *RefundDetail    `gorm:"type:jsonb" json:"refund,omitempty"`
	Transaction *TransactionData `gorm:"type:jsonb" json:"transaction,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Version is the optimistic-lock counter; every successful write
	// increments it. See PaymentRepository.UpdateVersioned.
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// IsExpired reports whether a pending payment is past its deadline.
// A pending payment past expires_at is logically expired even before the
// reaper persists the status (lazy expiry).
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.ExpiresAt)
}

// CanRetry reports whether a failed payment may be moved back to pending.
func (p *Payment) CanRetry() bool {
	return p.Status == PaymentStatusFailed && p.RetryCount < p.MaxRetries
}
