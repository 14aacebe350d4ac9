package repository

import (
	"context"
	"errors"
	"time"

	"github.com/traceline/payment-service/internal/domain/entity"
	"github.com/traceline/payment-service/internal/domain/model"
)

// Store sentinel errors. Adapters translate driver-level failures into
// these; the lifecycle manager maps them onto its error taxonomy.
var (
	// ErrDuplicateKey is returned by Insert when the id or a sparse-unique
	// identifier already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrVersionMismatch is returned by UpdateVersioned when the stored
	// version no longer matches the expected one (lost update).
	ErrVersionMismatch = errors.New("version mismatch")
)

// PaymentFilter narrows List queries.
type PaymentFilter struct {
	OwnerUID string
	Status   *model.PaymentStatus
	Limit    int
	Offset   int
}

// PaymentRepository is the durable keyed store for payment records.
type PaymentRepository interface {
	// Insert persists a new payment if and only if its id is absent.
	Insert(ctx context.Context, payment *model.Payment) error
	// GetByID returns the payment or (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	// GetByIdentifier looks a payment up by its wallet-network identifier;
	// (nil, nil) when absent.
	GetByIdentifier(ctx context.Context, identifier string) (*model.Payment, error)
	// UpdateVersioned writes payment only if the stored version equals
	// expectedVersion; the write itself stores expectedVersion+1.
	UpdateVersioned(ctx context.Context, payment *model.Payment, expectedVersion int64) error
	// List returns a filtered page of payments plus the unpaged total.
	List(ctx context.Context, filter PaymentFilter) ([]*model.Payment, int64, error)
	// ListExpiredPending returns pending payments whose deadline passed
	// before cutoff, bounded by limit.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error)
	// StatusStats aggregates count and total amount per status, optionally
	// scoped to one owner (empty string means all owners).
	StatusStats(ctx context.Context, ownerUID string) ([]entity.StatusStat, error)
}
