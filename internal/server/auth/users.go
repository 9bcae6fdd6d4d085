package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/learnhub/internal/models"
)

// Users lists every registered user
func (s *Service) Users(ctx context.Context) ([]*models.User, error) {
	return s.credentials.List(ctx)
}

// UpdateName renames userID. Only the owner may rename.
func (s *Service) UpdateName(ctx context.Context, actorID, userID, name string) (*models.User, error) {
	if actorID != userID {
		return nil, ErrForbidden
	}

	user, err := s.credentials.Rename(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user renamed", slog.String("user_id", userID))
	return user, nil
}

// ChangePassword replaces the password of userID after checking the
// current one, then revokes every refresh token of the user.
func (s *Service) ChangePassword(ctx context.Context, actorID, userID, current, password string) error {
	if actorID != userID {
		return ErrForbidden
	}
	if current == "" || password == "" {
		return fmt.Errorf("%w: current and new password are required", ErrInvalidInput)
	}

	user, err := s.credentials.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.credentials.Matches(user, current) {
		s.logger.WarnContext(ctx, "password change failed: invalid credentials", slog.String("user_id", userID))
		return ErrInvalidCredentials
	}

	if err := s.credentials.SetPassword(ctx, userID, password); err != nil {
		return err
	}

	n, err := s.revokeAll(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", userID),
		slog.Int("revoked", n),
	)
	return nil
}

// DeleteUser revokes the refresh tokens of userID and removes the user.
// Only the owner may delete.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID != userID {
		return ErrForbidden
	}

	if _, err := s.credentials.GetByID(ctx, userID); err != nil {
		return err
	}

	if _, err := s.revokeAll(ctx, userID); err != nil {
		return err
	}

	if err := s.credentials.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", userID))
	return nil
}

// DeleteAllUsers wipes every user together with their refresh tokens
func (s *Service) DeleteAllUsers(ctx context.Context) (int, error) {
	users, err := s.credentials.List(ctx)
	if err != nil {
		return 0, err
	}

	for _, user := range users {
		if _, err := s.revokeAll(ctx, user.ID); err != nil {
			return 0, err
		}
	}

	n, err := s.credentials.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.WarnContext(ctx, "all users deleted", slog.Int("count", n))
	return n, nil
}

func (s *Service) revokeAll(ctx context.Context, userID string) (int, error) {
	n, err := s.tokens.DeleteRefreshTokensByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return n, nil
}
