package storage

import (
	"context"
	"time"

	"github.com/iudanet/learnhub/internal/models"
)

//go:generate moq -out token_mock.go . TokenStorage

// TokenStorage defines interface for refresh token persistence.
// Tokens are addressed by their keyed hash; raw secrets never reach storage.
type TokenStorage interface {
	// CreateRefreshToken stores a new refresh token record
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshTokenByHash retrieves refresh token by its hash.
	// Expired records are returned as-is, the caller decides what to do with them.
	// Returns ErrTokenNotFound if no record matches
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// RotateRefreshToken atomically replaces hash and expiry of record id,
	// but only while its current hash is still oldHash.
	// Returns ErrTokenNotFound if the record is gone or was already rotated
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (*models.RefreshToken, error)

	// DeleteRefreshTokenByHash deletes refresh token by its hash.
	// Returns ErrTokenNotFound if token doesn't exist
	DeleteRefreshTokenByHash(ctx context.Context, tokenHash string) error

	// DeleteRefreshTokensByUser revokes every refresh token of userID.
	// Returns number of deleted tokens, zero is not an error
	DeleteRefreshTokensByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpiredTokens removes all expired tokens
	// Returns number of deleted tokens
	DeleteExpiredTokens(ctx context.Context) (int, error)
}
