package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/traceline/payment-service/internal/domain/model"
	domainRepo "github.com/traceline/payment-service/internal/domain/repository"
)

type productRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB, logger *zap.Logger) domainRepo.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

// GetByProductID retrieves a product by its catalog id
func (r *productRepository) GetByProductID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product

	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&product).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get product",
			zap.String("product_id", productID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}
