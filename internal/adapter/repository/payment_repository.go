package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/traceline/payment-service/internal/domain/entity"
	"github.com/traceline/payment-service/internal/domain/model"
	domainRepo "github.com/traceline/payment-service/internal/domain/repository"
)

// paymentRepository implements the PaymentRepository interface on postgres
type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new payment with insert-if-absent semantics. A conflict
// on the primary key or the sparse-unique identifier index inserts nothing
// and reports ErrDuplicateKey.
func (r *paymentRepository) Insert(ctx context.Context, payment *model.Payment) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payment)

	if result.Error != nil {
		r.logger.Error("Failed to insert payment",
			zap.String("payment_id", payment.ID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to insert payment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainRepo.ErrDuplicateKey
	}

	return nil
}

// GetByID retrieves a payment by its system-generated id
func (r *paymentRepository) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment",
			zap.String("payment_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// GetByIdentifier retrieves a payment by its wallet-network identifier
func (r *paymentRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by identifier",
			zap.String("identifier", identifier),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment by identifier: %w", err)
	}

	return &payment, nil
}

// UpdateVersioned writes the payment only if the stored version still equals
// expectedVersion. The statement is all-or-nothing at the store; a losing
// writer observes ErrVersionMismatch and must re-read.
func (r *paymentRepository) UpdateVersioned(ctx context.Context, payment *model.Payment, expectedVersion int64) error {
	payment.Version = expectedVersion + 1
	payment.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND version = ?", payment.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(payment)

	if result.Error != nil {
		r.logger.Error("Failed to update payment",
			zap.String("payment_id", payment.ID),
			zap.Int64("expected_version", expectedVersion),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainRepo.ErrVersionMismatch
	}

	return nil
}

// List returns a filtered page of payments plus the unpaged total
func (r *paymentRepository) List(ctx context.Context, filter domainRepo.PaymentFilter) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Payment{})
	if filter.OwnerUID != "" {
		query = query.Where("owner_uid = ?", filter.OwnerUID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		r.logger.Error("Failed to count payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&payments).Error; err != nil {
		r.logger.Error("Failed to list payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, total, nil
}

// ListExpiredPending returns pending payments whose deadline passed before
// cutoff, oldest first, bounded by limit. Used by the reaper.
func (r *paymentRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment

	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.PaymentStatusPending, cutoff).
		Order("expires_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&payments).Error; err != nil {
		r.logger.Error("Failed to list expired pending payments", zap.Error(err))
		return nil, fmt.Errorf("failed to list expired pending payments: %w", err)
	}

	return payments, nil
}

// StatusStats aggregates payment count and total amount per status
func (r *paymentRepository) StatusStats(ctx context.Context, ownerUID string) ([]entity.StatusStat, error) {
	var stats []entity.StatusStat

	query := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total_amount").
		Group("status")

	if ownerUID != "" {
		query = query.Where("owner_uid = ?", ownerUID)
	}

	if err := query.Scan(&stats).Error; err != nil {
		r.logger.Error("Failed to aggregate payment stats",
			zap.String("owner_uid", ownerUID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate payment stats: %w", err)
	}

	return stats, nil
}
