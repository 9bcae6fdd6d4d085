// Package jwt issues and verifies learnhub access tokens.
//
// Every service that protects routes embeds the Verifier from this package;
// only the user service holds a Signer.
package jwt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL - время жизни access token по умолчанию
const DefaultAccessTokenTTL = time.Hour

// Claims represents access token claims: sub, name, iat, exp
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim
func (c *Claims) UserID() string {
	return c.Subject
}

// Signer mints access tokens
type Signer struct {
	keys    *Keys
	logger  *slog.Logger
	now     func() time.Time
	signRSA func(Claims) (string, error)
	ttl     time.Duration
}

// SignerOption configures a Signer
type SignerOption func(*Signer)

// WithClock overrides the time source used for iat and exp
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a new access token signer.
// ttl <= 0 selects DefaultAccessTokenTTL.
func NewSigner(logger *slog.Logger, keys *Keys, ttl time.Duration, opts ...SignerOption) *Signer {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	s := &Signer{
		keys:   keys,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
	s.signRSA = s.rs256
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signer) rs256(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keys.privateKey)
}

// TTL returns the access token lifetime
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign creates a new access token for the user.
//
// RS256 is preferred; any RS256 failure falls back to HS256 with the shared
// secret and is logged. The fallback marks keys degraded, so Verifier built
// over the same keys accepts the HS256 token. An error is returned only if
// both paths fail.
func (s *Signer) Sign(userID, name string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	if s.keys.privateKey != nil {
		token, err := s.signRSA(claims)
		if err == nil {
			return token, expiresAt, nil
		}
		if s.keys.markFallback() {
			s.logger.Warn("signing key degraded",
				slog.String("mode", string(ModeHS256)),
				slog.String("reason", runtimeFallbackReason),
				slog.Any("error", err))
		} else {
			s.logger.Warn("rs256 signing failed, falling back to hs256", slog.Any("error", err))
		}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.keys.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, expiresAt, nil
}
