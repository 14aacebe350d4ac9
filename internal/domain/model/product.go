package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog collaborator. The lifecycle manager only resolves
// product references at payment creation; catalog CRUD lives elsewhere.
type Product struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string          `gorm:"unique;not null;size:100" json:"product_id"`
	OwnerUID  string          `gorm:"not null;size:100;index" json:"owner_uid"`
	Name      string          `gorm:"not null;size:200" json:"name"`
	Hash      string          `gorm:"size:128" json:"hash"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	Quantity  int             `gorm:"default:0" json:"quantity"`
	CreatedAt time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Product) TableName() string {
	return "products"
}
