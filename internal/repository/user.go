package repository

import (
	"context"
	"errors"

	"rocket-rental/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when a write collides with another user's username.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines persistence operations for the User aggregate.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ApplyProfileUpdate writes the whole intent in one transaction.
	ApplyProfileUpdate(ctx context.Context, update domain.ProfileUpdate) error
	// EnsureCapability attaches the capability with an empty bio unless it
	// already exists. created is false when nothing was written.
	EnsureCapability(ctx context.Context, userID int64, capability domain.Capability) (created bool, err error)
	SetImageKey(ctx context.Context, userID int64, key string) error
}
