// Package auth implements the Token Issuer: login, refresh token rotation,
// logout and registration on top of the credential and token stores.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/learnhub/internal/crypto"
	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/jwt"
	"github.com/iudanet/learnhub/internal/server/storage"
)

// DefaultRefreshTTL - абсолютное время жизни refresh token
const DefaultRefreshTTL = 7 * 24 * time.Hour

// Session is the result of a successful login or refresh.
// RefreshToken is the raw secret; it goes into the cookie and nowhere else.
type Session struct {
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             *models.User
	AccessToken      string
	RefreshToken     string
}

// Service issues, rotates and revokes tokens
type Service struct {
	logger      *slog.Logger
	credentials *CredentialStore
	tokens      storage.TokenStorage
	signer      *jwt.Signer
	hasher      *crypto.RefreshHasher
	now         func() time.Time
	refreshTTL  time.Duration
}

// Option configures Service
type Option func(*Service)

// WithRefreshTTL overrides DefaultRefreshTTL
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock replaces time.Now for refresh token expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создает новый Token Issuer
func NewService(
	logger *slog.Logger,
	users storage.UserStorage,
	tokens storage.TokenStorage,
	signer *jwt.Signer,
	hasher *crypto.RefreshHasher,
	opts ...Option,
) *Service {
	s := &Service{
		logger:      logger,
		credentials: NewCredentialStore(users),
		tokens:      tokens,
		signer:      signer,
		hasher:      hasher,
		now:         time.Now,
		refreshTTL:  DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshTTL returns the refresh token lifetime
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Register creates a credential record
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	user, err := s.credentials.Create(ctx, email, name, password)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// User loads a credential record by id
func (s *Service) User(ctx context.Context, userID string) (*models.User, error) {
	return s.credentials.GetByID(ctx, userID)
}

// Login checks credentials and starts a new refresh token lineage
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.WarnContext(ctx, "login failed: invalid credentials")
		}
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.signer.Sign(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	secret, err := crypto.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: s.hasher.Hash(secret),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return &Session{
		User:             user,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     secret,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// Refresh exchanges a refresh secret for a new access token and rotates the
// secret in place. The presented secret stops working immediately.
func (s *Service) Refresh(ctx context.Context, secret string) (*Session, error) {
	if secret == "" {
		return nil, ErrNoRefreshToken
	}

	oldHash := s.hasher.Hash(secret)

	record, err := s.tokens.GetRefreshTokenByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			s.logger.WarnContext(ctx, "refresh failed: unknown refresh token")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	now := s.now()
	if record.Expired(now) {
		if err := s.tokens.DeleteRefreshTokenByHash(ctx, oldHash); err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
			return nil, fmt.Errorf("failed to delete expired refresh token: %w", err)
		}
		s.logger.InfoContext(ctx, "refresh token expired", slog.String("user_id", record.UserID))
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.credentials.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.signer.Sign(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	newSecret, err := crypto.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}

	rotated, err := s.tokens.RotateRefreshToken(ctx, record.ID, oldHash, s.hasher.Hash(newSecret), now.Add(s.refreshTTL))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			// Параллельный refresh с тем же секретом успел первым
			s.logger.WarnContext(ctx, "refresh failed: token already rotated", slog.String("user_id", record.UserID))
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed", slog.String("user_id", user.ID))

	return &Session{
		User:             user,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     newSecret,
		RefreshExpiresAt: rotated.ExpiresAt,
	}, nil
}

// Logout revokes the refresh token if one is presented.
// Missing or unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}

	err := s.tokens.DeleteRefreshTokenByHash(ctx, s.hasher.Hash(secret))
	if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if err == nil {
		s.logger.InfoContext(ctx, "refresh token revoked")
	}

	return nil
}

// PurgeExpired deletes refresh token records past their expiry
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.tokens.DeleteExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "expired refresh tokens purged", slog.Int("count", n))
	return n, nil
}
