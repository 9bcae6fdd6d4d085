package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/learnhub/internal/crypto"
	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/storage"
	"github.com/iudanet/learnhub/internal/validation"
)

// CredentialStore wraps user storage and owns the password hashing scheme.
// The issuer only ever sees whether a password matches.
type CredentialStore struct {
	users storage.UserStorage
	now   func() time.Time
}

// NewCredentialStore creates a credential store over users
func NewCredentialStore(users storage.UserStorage) *CredentialStore {
	return &CredentialStore{users: users, now: time.Now}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPasswordHash is compared against when the email is unknown so both
// failure paths cost one bcrypt comparison.
func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = crypto.HashPassword(uuid.NewString())
	})
	return dummyHash
}

// Matches reports whether password belongs to user
func (c *CredentialStore) Matches(user *models.User, password string) bool {
	return crypto.PasswordMatches(user.PasswordHash, password)
}

// Authenticate returns the user owning email if password matches.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (c *CredentialStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := c.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			crypto.PasswordMatches(dummyPasswordHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !c.Matches(user, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Create registers a new credential record
func (c *CredentialStore) Create(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	for _, err := range []error{
		validation.ValidateEmail(email),
		validation.ValidatePassword(password),
		validation.ValidateName(name),
	} {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    c.now(),
	}

	if err := c.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID loads a credential record
func (c *CredentialStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := c.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every credential record ordered by email
func (c *CredentialStore) List(ctx context.Context) ([]*models.User, error) {
	users, err := c.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Rename sets a new display name
func (c *CredentialStore) Rename(ctx context.Context, userID, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	user, err := c.users.UpdateUserName(ctx, userID, name)
	if err != nil {
		return nil, mapUserErr(err, "failed to update user")
	}
	return user, nil
}

// SetPassword replaces the stored hash with one of password
func (c *CredentialStore) SetPassword(ctx context.Context, userID, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	if err := c.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return mapUserErr(err, "failed to update password")
	}
	return nil
}

// Delete removes a credential record
func (c *CredentialStore) Delete(ctx context.Context, userID string) error {
	if err := c.users.DeleteUser(ctx, userID); err != nil {
		return mapUserErr(err, "failed to delete user")
	}
	return nil
}

// DeleteAll removes every credential record
func (c *CredentialStore) DeleteAll(ctx context.Context) (int, error) {
	n, err := c.users.DeleteAllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	return n, nil
}

func mapUserErr(err error, msg string) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
