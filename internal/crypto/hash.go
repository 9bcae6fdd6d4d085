package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RefreshSecretSize - количество случайных байт в сыром refresh token
const RefreshSecretSize = 48

// GenerateRefreshSecret создает новый высокоэнтропийный секрет refresh token.
// Результат base64url без паддинга, безопасен для cookie.
func GenerateRefreshSecret() (string, error) {
	buf := make([]byte, RefreshSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RefreshHasher computes the keyed hash under which refresh tokens are stored
type RefreshHasher struct {
	key []byte
}

// NewRefreshHasher creates a hasher bound to key
func NewRefreshHasher(key []byte) (*RefreshHasher, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("refresh hash key cannot be empty")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &RefreshHasher{key: k}, nil
}

// Hash возвращает hex-encoded HMAC-SHA256 от сырого секрета.
// Детерминирован: одинаковый секрет и ключ дают одинаковый хеш.
func (h *RefreshHasher) Hash(secret string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
