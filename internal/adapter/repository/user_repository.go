package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/traceline/payment-service/internal/domain/model"
	domainRepo "github.com/traceline/payment-service/internal/domain/repository"
)

type userRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB, logger *zap.Logger) domainRepo.UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

// GetByUID retrieves a user profile by its wallet-network uid
func (r *userRepository) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get user",
			zap.String("uid", uid),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Upsert creates the profile or refreshes its mutable fields on conflict
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "wallet_address", "login_type", "updated_at"}),
		}).
		Create(user).Error

	if err != nil {
		r.logger.Error("Failed to upsert user",
			zap.String("uid", user.UID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}
