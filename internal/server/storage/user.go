package storage

import (
	"context"

	"github.com/iudanet/learnhub/internal/models"
)

// UserStorage defines interface for credential records persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email already exists
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// ListUsers returns all users ordered by email
	ListUsers(ctx context.Context) ([]*models.User, error)

	// UpdateUserName changes the display name and returns the updated user.
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUserName(ctx context.Context, userID, name string) (*models.User, error)

	// UpdateUserPassword replaces the password hash.
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	// DeleteUser removes the user.
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error

	// DeleteAllUsers removes every user and returns how many were removed
	DeleteAllUsers(ctx context.Context) (int, error)
}

// Pinger is implemented by stores that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}
