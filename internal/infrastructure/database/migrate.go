package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/traceline/payment-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	// Create custom types BEFORE auto-migrate
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	// Auto-migrate all models
	err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Payment{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	// Create custom indexes and constraints
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// The external identifier is unique only when present; records created
	// before the wallet network assigns one carry NULL.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_payment_identifier ON payments (identifier) WHERE identifier IS NOT NULL`).Error; err != nil {
		return err
	}

	// The reaper scans for overdue pending payments only.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_pending_expiry ON payments (expires_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	// Owner-scoped listing, newest first.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_owner_created ON payments (owner_uid, created_at DESC)`).Error; err != nil {
		return err
	}

	return nil
}

// createCustomTypes creates the enum types the payments table depends on.
// The value lists come from the model so the store can never reject a status
// the code is allowed to write.
func createCustomTypes(db *gorm.DB) error {
	paymentValues := make([]string, 0, len(model.PaymentStatusValues()))
	for _, v := range model.PaymentStatusValues() {
		paymentValues = append(paymentValues, string(v))
	}
	if err := ensureEnumType(db, "payment_status", paymentValues); err != nil {
		return err
	}

	webhookValues := make([]string, 0, len(model.WebhookStatusValues()))
	for _, v := range model.WebhookStatusValues() {
		webhookValues = append(webhookValues, string(v))
	}
	return ensureEnumType(db, "webhook_status", webhookValues)
}

// ensureEnumType creates the type when absent. When it already exists,
// values introduced after the type first shipped are appended so existing
// databases pick them up.
func ensureEnumType(db *gorm.DB, name string, values []string) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, name).Scan(&exists).Error; err != nil {
		return err
	}

	if !exists {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "'" + v + "'"
		}
		return db.Exec(fmt.Sprintf(`CREATE TYPE %s AS ENUM (%s)`, name, strings.Join(quoted, ", "))).Error
	}

	for _, v := range values {
		if err := db.Exec(fmt.Sprintf(`ALTER TYPE %s ADD VALUE IF NOT EXISTS '%s'`, name, v)).Error; err != nil {
			return err
		}
	}
	return nil
}
