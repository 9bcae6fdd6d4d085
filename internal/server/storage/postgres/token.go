package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/storage"
)

// CreateRefreshToken stores a new refresh token record
func (s *Storage) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt.UTC(),
		token.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshTokenByHash retrieves refresh token by its hash
func (s *Storage) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	return scanToken(s.db.QueryRowContext(ctx, query, tokenHash))
}

// RotateRefreshToken overwrites hash and expiry of record id while its hash
// is still oldHash. Row locking in PostgreSQL lets exactly one of several
// concurrent callers match.
func (s *Storage) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET token_hash = $1, expires_at = $2
		WHERE id = $3 AND token_hash = $4
		RETURNING id, user_id, token_hash, expires_at, created_at
	`

	return scanToken(s.db.QueryRowContext(ctx, query, newHash, expiresAt.UTC(), id, oldHash))
}

// DeleteRefreshTokenByHash deletes refresh token by its hash
func (s *Storage) DeleteRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteRefreshTokensByUser revokes every refresh token of userID
func (s *Storage) DeleteRefreshTokensByUser(ctx context.Context, userID string) (int, error) {
	if !isUUID(userID) {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user refresh tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteExpiredTokens removes all expired tokens
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func scanToken(row *sql.Row) (*models.RefreshToken, error) {
	token := &models.RefreshToken{}

	err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return token, nil
}
