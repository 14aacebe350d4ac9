package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/traceline/payment-service/internal/domain/errors"
	"github.com/traceline/payment-service/internal/domain/model"
	"github.com/traceline/payment-service/internal/domain/repository"
)

const (
	// PendingTTL is how long a payment may sit in pending before it is
	// logically expired.
	PendingTTL = 15 * time.Minute

	// DefaultMaxRetries bounds how often a failed payment may be retried.
	DefaultMaxRetries = 3

	// casRetryBudget bounds internal re-read/re-apply rounds on version
	// mismatch before ConcurrentModification is surfaced to the caller.
	casRetryBudget = 3

	// reapBatchSize bounds one reaper pass.
	reapBatchSize = 100

	// MetadataSizeCap is the documented cap on the marshalled size of the
	// opaque metadata bag.
	MetadataSizeCap = 4096
)

// PaymentLifecycleService owns the payment state machine: creation,
// transitions, retry, refund and expiry reaping. All writes go through the
// versioned-update discipline of the store; read-then-write is never assumed
// atomic.
type PaymentLifecycleService struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	products repository.ProductRepository
	clock    Clock
	logger   *zap.Logger
}

// NewPaymentLifecycleService creates a new payment lifecycle service
func NewPaymentLifecycleService(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	clock Clock,
	logger *zap.Logger,
) *PaymentLifecycleService {
	if clock == nil {
		clock = SystemClock()
	}
	return &PaymentLifecycleService{
		payments: payments,
		users:    users,
		products: products,
		clock:    clock,
		logger:   logger,
	}
}

// CreateInput carries a client-initiated payment creation request.
type CreateInput struct {
	OwnerUID   string
	Amount     decimal.Decimal
	Currency   string
	Memo       string
	Identifier *string
	Metadata   map[string]interface{}

	// Subject: at most one of ProductID (+Quantity) or Service.
	ProductID string
	Quantity  int
	Service   *model.ServiceRef
}

// Create validates the input, snapshots the owner, resolves the optional
// product reference and persists the new payment with insert-if-absent
// semantics keyed on the generated id.
func (s *PaymentLifecycleService) Create(ctx context.Context, in CreateInput) (*model.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, domainErrors.NewValidationError("amount must be positive")
	}
	if !model.ValidCurrency(in.Currency) {
		return nil, domainErrors.NewValidationError(fmt.Sprintf("unsupported currency: %s", in.Currency))
	}
	if in.ProductID != "" && in.Service != nil {
		return nil, domainErrors.NewValidationError("payment subject must be a product or a service, not both")
	}
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, domainErrors.NewValidationError("metadata is not serializable")
		}
		if len(raw) > MetadataSizeCap {
			return nil, domainErrors.NewValidationError(fmt.Sprintf("metadata exceeds %d byte cap", MetadataSizeCap))
		}
	}

	owner, err := s.users.GetByUID(ctx, in.OwnerUID)
	if err != nil {
		return nil, s.storeError("", err)
	}
	if owner == nil {
		return nil, domainErrors.NewValidationError(fmt.Sprintf("unknown owner uid: %s", in.OwnerUID))
	}

	var productRef *model.ProductRef
	if in.ProductID != "" {
		product, err := s.products.GetByProductID(ctx, in.ProductID)
		if err != nil {
			return nil, s.storeError("", err)
		}
		if product == nil {
			return nil, domainErrors.NewValidationError(fmt.Sprintf("unknown product: %s", in.ProductID))
		}
		quantity := in.Quantity
		if quantity < 1 {
			quantity = 1
		}
		productRef = &model.ProductRef{
			ProductID: product.ProductID,
			Name:      product.Name,
			Hash:      product.Hash,
			Quantity:  quantity,
		}
	}

	// Pre-check the alternate key so the common duplicate case fails fast;
	// the sparse unique index catches the concurrent race below.
	if in.Identifier != nil && *in.Identifier != "" {
		existing, err := s.payments.GetByIdentifier(ctx, *in.Identifier)
		if err != nil {
			return nil, s.storeError("", err)
		}
		if existing != nil {
			return nil, domainErrors.NewConflictError(*in.Identifier)
		}
	}

	now := s.clock.Now()
	payment := &model.Payment{
		ID:         newPaymentID(now),
		Identifier: normalizeIdentifier(in.Identifier),
		Owner: model.Owner{
			UID:           owner.UID,
			DisplayName:   owner.Username,
			WalletAddress: owner.WalletAddress,
		},
		Amount:        in.Amount,
		Currency:      in.Currency,
		Memo:          in.Memo,
		ProductRef:    productRef,
		ServiceRef:    in.Service,
		Status:        model.PaymentStatusPending,
		ExpiresAt:     now.Add(PendingTTL),
		MaxRetries:    DefaultMaxRetries,
		WebhookStatus: model.WebhookStatusPending,
		Metadata:      in.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			identifier := ""
			if payment.Identifier != nil {
				identifier = *payment.Identifier
			}
			return nil, domainErrors.NewConflictError(identifier)
		}
		return nil, s.storeError(payment.ID, err)
	}

	s.logger.Info("Payment created",
		zap.String("payment_id", payment.ID),
		zap.String("owner_uid", payment.Owner.UID),
		zap.String("amount", payment.Amount.String()),
		zap.String("currency", payment.Currency))

	return payment, nil
}

// TransitionInput carries a status-update request, client or webhook
// originated.
type TransitionInput struct {
	// LookupKey is a payment id or a wallet-network identifier; id wins.
	LookupKey string
	Target    model.PaymentStatus
	// Transaction is merged into the payment on completion.
	Transaction *model.TransactionData
	// Error populates last_error on transition into failed.
	Error *model.ErrorDetail
	// FromWebhook marks wallet-network callbacks for delivery bookkeeping.
	FromWebhook bool
}

// transitionTargets are the statuses the generic Transition operation may
// move a payment into. pending, expired and refunded have dedicated
// operations (Retry, Reap, Refund).
var transitionTargets = map[model.PaymentStatus]bool{
	model.PaymentStatusApproved:  true,
	model.PaymentStatusCompleted: true,
	model.PaymentStatusCancelled: true,
	model.PaymentStatusFailed:    true,
}

// Transition applies a status change. Replaying the current status is a
// no-op success (webhook redelivery tolerance). Writes are retried a bounded
// number of times on version mismatch before ConcurrentModification is
// surfaced.
func (s *PaymentLifecycleService) Transition(ctx context.Context, in TransitionInput) (*model.Payment, error) {
	for attempt := 0; attempt <= casRetryBudget; attempt++ {
		payment, err := s.lookup(ctx, in.LookupKey)
		if err != nil {
			return nil, err
		}

		// Idempotent replay: the wallet network may redeliver callbacks.
		if payment.Status == in.Target {
			return payment, nil
		}

		if !transitionTargets[in.Target] {
			return nil, domainErrors.NewInvalidTransitionError(payment.ID, string(payment.Status), string(in.Target))
		}

		now := s.clock.Now()
		if payment.IsExpired(now) {
			// Lazy expiry: persist best-effort, then report. A racing
			// writer invalidating the version just means someone else
			// already settled the payment's fate.
			s.expire(ctx, payment)
			return nil, domainErrors.NewExpiredError(payment.ID)
		}

		if !payment.Status.CanTransitionTo(in.Target) {
			return nil, domainErrors.NewInvalidTransitionError(payment.ID, string(payment.Status), string(in.Target))
		}

		s.applyTransition(payment, in, now)

		err = s.payments.UpdateVersioned(ctx, payment, payment.Version)
		if errors.Is(err, repository.ErrVersionMismatch) {
			s.logger.Debug("Transition lost update race, re-reading",
				zap.String("payment_id", payment.ID),
				zap.String("target", string(in.Target)),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, s.storeError(payment.ID, err)
		}

		s.logger.Info("Payment transitioned",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(in.Target)),
			zap.Bool("from_webhook", in.FromWebhook))
		return payment, nil
	}

	return nil, domainErrors.NewConcurrentModificationError(in.LookupKey)
}

// applyTransition mutates the in-memory payment for the target status.
// Phase timestamps are written at most once (idempotent timestamping).
func (s *PaymentLifecycleService) applyTransition(payment *model.Payment, in TransitionInput, now time.Time) {
	switch in.Target {
	case model.PaymentStatusApproved:
		if payment.ApprovedAt == nil {
			payment.ApprovedAt = &now
		}
	case model.PaymentStatusCompleted:
		if in.Transaction != nil {
			merged := mergeTransaction(payment.Transaction, in.Transaction)
			payment.Transaction = &merged
		}
		if payment.CompletedAt == nil {
			payment.CompletedAt = &now
		}
	case model.PaymentStatusCancelled:
		if payment.CancelledAt == nil {
			payment.CancelledAt = &now
		}
	case model.PaymentStatusFailed:
		if payment.FailedAt == nil {
			payment.FailedAt = &now
		}
		detail := model.ErrorDetail{Message: "payment failed", Timestamp: now}
		if in.Error != nil {
			detail.Message = in.Error.Message
			detail.Code = in.Error.Code
			detail.Timestamp = now
		}
		payment.LastError = &detail
		payment.RetryCount++
	}

	payment.Status = in.Target

	if in.FromWebhook {
		payment.WebhookStatus = model.WebhookStatusSent
		payment.WebhookAttempts++
	}
}

// Retry moves a failed payment back to pending with a fresh deadline.
func (s *PaymentLifecycleService) Retry(ctx context.Context, paymentID string) (*model.Payment, error) {
	for attempt := 0; attempt <= casRetryBudget; attempt++ {
		payment, err := s.lookup(ctx, paymentID)
		if err != nil {
			return nil, err
		}

		if payment.Status != model.PaymentStatusFailed {
			return nil, domainErrors.NewInvalidTransitionError(payment.ID, string(payment.Status), string(model.PaymentStatusPending))
		}
		if payment.RetryCount >= payment.MaxRetries {
			return nil, domainErrors.NewRetryExhaustedError(payment.ID, payment.RetryCount, payment.MaxRetries)
		}

		now := s.clock.Now()
		if now.After(payment.ExpiresAt) {
			return nil, domainErrors.NewExpiredError(payment.ID)
		}

		payment.Status = model.PaymentStatusPending
		payment.ExpiresAt = now.Add(PendingTTL)

		err = s.payments.UpdateVersioned(ctx, payment, payment.Version)
		if errors.Is(err, repository.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return nil, s.storeError(payment.ID, err)
		}

		s.logger.Info("Payment retried",
			zap.String("payment_id", payment.ID),
			zap.Int("retry_count", payment.RetryCount))
		return payment, nil
	}

	return nil, domainErrors.NewConcurrentModificationError(paymentID)
}

// Refund settles a completed payment. amount defaults to the full original
// amount when nil.
func (s *PaymentLifecycleService) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (*model.Payment, error) {
	for attempt := 0; attempt <= casRetryBudget; attempt++ {
		payment, err := s.lookup(ctx, paymentID)
		if err != nil {
			return nil, err
		}

		if payment.Status != model.PaymentStatusCompleted {
			return nil, domainErrors.NewInvalidTransitionError(payment.ID, string(payment.Status), string(model.PaymentStatusRefunded))
		}

		refundAmount := payment.Amount
		if amount != nil {
			if !amount.IsPositive() {
				return nil, domainErrors.NewValidationError("refund amount must be positive")
			}
			if amount.GreaterThan(payment.Amount) {
				return nil, domainErrors.NewValidationError("refund amount exceeds original amount")
			}
			refundAmount = *amount
		}

		now := s.clock.Now()
		payment.Status = model.PaymentStatusRefunded
		payment.Refund = &model.RefundDetail{
			Amount:      refundAmount,
			Reason:      reason,
			ProcessedAt: now,
		}

		err = s.payments.UpdateVersioned(ctx, payment, payment.Version)
		if errors.Is(err, repository.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return nil, s.storeError(payment.ID, err)
		}

		s.logger.Info("Payment refunded",
			zap.String("payment_id", payment.ID),
			zap.String("refund_amount", refundAmount.String()))
		return payment, nil
	}

	return nil, domainErrors.NewConcurrentModificationError(paymentID)
}

// Reap transitions pending payments past their deadline to expired. Safe to
// run concurrently with itself and with client transitions: each candidate
// is re-read immediately before the conditional write, and a lost race is a
// no-op, never an overwrite.
func (s *PaymentLifecycleService) Reap(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.payments.ListExpiredPending(ctx, now, reapBatchSize)
	if err != nil {
		return 0, s.storeError("", err)
	}

	reaped := 0
	for _, candidate := range candidates {
		payment, err := s.payments.GetByID(ctx, candidate.ID)
		if err != nil {
			s.logger.Warn("Reaper failed to re-read payment",
				zap.String("payment_id", candidate.ID),
				zap.Error(err))
			continue
		}
		if payment == nil || !payment.IsExpired(s.clock.Now()) {
			continue
		}
		if s.expire(ctx, payment) {
			reaped++
		}
	}

	if reaped > 0 {
		s.logger.Info("Reaped expired payments", zap.Int("count", reaped))
	}
	return reaped, nil
}

// expire attempts a single conditional write moving payment to expired.
// Returns false when the write lost a race or failed; the racing transition
// owns the payment's fate in that case.
func (s *PaymentLifecycleService) expire(ctx context.Context, payment *model.Payment) bool {
	expired := *payment
	expired.Status = model.PaymentStatusExpired

	err := s.payments.UpdateVersioned(ctx, &expired, expired.Version)
	if errors.Is(err, repository.ErrVersionMismatch) {
		return false
	}
	if err != nil {
		s.logger.Warn("Failed to persist expiry",
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		return false
	}
	return true
}

// GetPayment returns a payment by id or identifier, lazily persisting
// expiry when the deadline has passed.
func (s *PaymentLifecycleService) GetPayment(ctx context.Context, lookupKey string) (*model.Payment, error) {
	payment, err := s.lookup(ctx, lookupKey)
	if err != nil {
		return nil, err
	}
	if payment.IsExpired(s.clock.Now()) {
		if s.expire(ctx, payment) {
			payment.Status = model.PaymentStatusExpired
		} else if fresh, err := s.payments.GetByID(ctx, payment.ID); err == nil && fresh != nil {
			payment = fresh
		}
	}
	return payment, nil
}

// ListPayments returns a filtered page of payments plus the unpaged total.
func (s *PaymentLifecycleService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]*model.Payment, int64, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, 0, s.storeError("", err)
	}
	return payments, total, nil
}

// Now exposes the service clock for projections at the API boundary.
func (s *PaymentLifecycleService) Now() time.Time {
	return s.clock.Now()
}

// lookup resolves a payment by id first, identifier second.
func (s *PaymentLifecycleService) lookup(ctx context.Context, key string) (*model.Payment, error) {
	if key == "" {
		return nil, domainErrors.NewValidationError("payment lookup key is required")
	}

	payment, err := s.payments.GetByID(ctx, key)
	if err != nil {
		return nil, s.storeError(key, err)
	}
	if payment == nil {
		payment, err = s.payments.GetByIdentifier(ctx, key)
		if err != nil {
			return nil, s.storeError(key, err)
		}
	}
	if payment == nil {
		return nil, domainErrors.NewNotFoundError(key)
	}
	return payment, nil
}

// storeError maps store failures onto the error taxonomy. Deadline
// expiry becomes a timeout; everything else is internal.
func (s *PaymentLifecycleService) storeError(paymentID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainErrors.NewTimeoutError(paymentID, err)
	}
	return domainErrors.NewInternalError("payment store failure", err)
}

// mergeTransaction folds the incoming wallet-network payload into the stored
// one. Incoming non-zero fields win; fields absent from the callback keep
// their stored values.
func mergeTransaction(current, incoming *model.TransactionData) model.TransactionData {
	merged := model.TransactionData{}
	if current != nil {
		merged = *current
	}
	if incoming.TxID != "" {
		merged.TxID = incoming.TxID
	}
	if incoming.Link != "" {
		merged.Link = incoming.Link
	}
	if incoming.Verified {
		merged.Verified = true
	}
	return merged
}

// newPaymentID builds the immutable payment id: a monotonic-ish millisecond
// timestamp plus a random suffix. Assigned exactly once, before first
// persistence.
func newPaymentID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("pay_%d_%s", now.UnixMilli(), suffix)
}

func normalizeIdentifier(identifier *string) *string {
	if identifier == nil || *identifier == "" {
		return nil
	}
	return identifier
}
