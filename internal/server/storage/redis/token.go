// Package redis keeps refresh token records in Redis hashes keyed by token hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/storage"
)

const (
	// DefaultPrefix namespaces all keys written by the store
	DefaultPrefix = "learnhub:refresh:"

	// DefaultGrace keeps a record readable for a while after it expires,
	// so a late refresh is reported as expired instead of unknown.
	DefaultGrace = 24 * time.Hour
)

// userIndex is the key suffix of the per-user set of record keys
const userIndex = "user:"

// rotateScript moves the record from KEYS[1] to KEYS[2] only when KEYS[1]
// still belongs to ARGV[1]. Returns {user_id, created_at} or nil.
// ARGV[5] is the key prefix, the user's index set is updated as well.
const rotateScript = `
local id = redis.call("HGET", KEYS[1], "id")
if not id or id ~= ARGV[1] then
  return nil
end
local user_id = redis.call("HGET", KEYS[1], "user_id")
local created_at = redis.call("HGET", KEYS[1], "created_at")
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[2], "id", id, "user_id", user_id, "token_hash", ARGV[2], "expires_at", ARGV[3], "created_at", created_at)
redis.call("PEXPIRE", KEYS[2], ARGV[4])
local index = ARGV[5] .. "user:" .. user_id
redis.call("SREM", index, KEYS[1])
redis.call("SADD", index, KEYS[2])
redis.call("PEXPIRE", index, ARGV[4])
return {user_id, created_at}
`

// revokeScript deletes every record listed in the index set KEYS[1]
// and the set itself. Returns the number of records removed.
const revokeScript = `
local removed = 0
for _, key in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  removed = removed + redis.call("DEL", key)
end
redis.call("DEL", KEYS[1])
return removed
`

var (
	rotateLua = redis.NewScript(rotateScript)
	revokeLua = redis.NewScript(revokeScript)
)

// TokenStore implements storage.TokenStorage on Redis
type TokenStore struct {
	rdb    redis.UniversalClient
	now    func() time.Time
	prefix string
	grace  time.Duration
}

var (
	_ storage.TokenStorage = (*TokenStore)(nil)
	_ storage.Pinger       = (*TokenStore)(nil)
)

// Option configures TokenStore
type Option func(*TokenStore)

// WithPrefix overrides the key prefix
func WithPrefix(prefix string) Option {
	return func(s *TokenStore) { s.prefix = prefix }
}

// WithGrace overrides how long expired records stay readable
func WithGrace(grace time.Duration) Option {
	return func(s *TokenStore) { s.grace = grace }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) { s.now = now }
}

// NewTokenStore creates a token store over an existing client
func NewTokenStore(rdb redis.UniversalClient, opts ...Option) *TokenStore {
	s := &TokenStore{
		rdb:    rdb,
		now:    time.Now,
		prefix: DefaultPrefix,
		grace:  DefaultGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks Redis connectivity
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *TokenStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *TokenStore) userKey(userID string) string {
	return s.prefix + userIndex + userID
}

func (s *TokenStore) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now()) + s.grace
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

// CreateRefreshToken stores a new refresh token record
func (s *TokenStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	key := s.key(token.TokenHash)
	index := s.userKey(token.UserID)
	ttl := s.ttl(token.ExpiresAt)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", token.ID,
			"user_id", token.UserID,
			"token_hash", token.TokenHash,
			"expires_at", strconv.FormatInt(token.ExpiresAt.UnixNano(), 10),
			"created_at", strconv.FormatInt(token.CreatedAt.UnixNano(), 10),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, index, key)
		pipe.PExpire(ctx, index, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshTokenByHash retrieves refresh token by its hash
func (s *TokenStore) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if len(fields) == 0 {
		return nil, storage.ErrTokenNotFound
	}

	expiresAt, err := parseUnixNano(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	createdAt, err := parseUnixNano(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	return &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// RotateRefreshToken atomically moves record id from oldHash to newHash
func (s *TokenStore) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	res, err := rotateLua.Run(ctx, s.rdb,
		[]string{s.key(oldHash), s.key(newHash)},
		id,
		newHash,
		strconv.FormatInt(expiresAt.UnixNano(), 10),
		s.ttl(expiresAt).Milliseconds(),
		s.prefix,
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected rotate reply of %d elements", len(res))
	}

	createdAt, err := parseUnixNano(res[1])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	return &models.RefreshToken{
		ID:        id,
		UserID:    res[0],
		TokenHash: newHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// DeleteRefreshTokenByHash deletes refresh token by its hash
func (s *TokenStore) DeleteRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	n, err := s.rdb.Del(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if n == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteRefreshTokensByUser removes every record indexed for userID
func (s *TokenStore) DeleteRefreshTokensByUser(ctx context.Context, userID string) (int, error) {
	n, err := revokeLua.Run(ctx, s.rdb, []string{s.userKey(userID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete user refresh tokens: %w", err)
	}

	return n, nil
}

// DeleteExpiredTokens is a no-op: Redis evicts records through key TTLs.
func (s *TokenStore) DeleteExpiredTokens(_ context.Context) (int, error) {
	return 0, nil
}

func parseUnixNano(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}
