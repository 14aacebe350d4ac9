package repository

import (
	"context"

	"github.com/traceline/payment-service/internal/domain/model"
)

// UserRepository is the profile collaborator read by the lifecycle manager
// for owner snapshots and written by the credential issue flow.
type UserRepository interface {
	// GetByUID returns the user or (nil, nil) when absent.
	GetByUID(ctx context.Context, uid string) (*model.User, error)
	// Upsert creates the profile or refreshes its mutable fields.
	Upsert(ctx context.Context, user *model.User) error
}
