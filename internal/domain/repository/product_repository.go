package repository

import (
	"context"

	"github.com/traceline/payment-service/internal/domain/model"
)

// ProductRepository resolves product references at payment creation.
type ProductRepository interface {
	// GetByProductID returns the product or (nil, nil) when absent.
	GetByProductID(ctx context.Context, productID string) (*model.Product, error)
}
