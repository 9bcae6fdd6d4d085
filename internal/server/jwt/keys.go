package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
)

// Mode is the signing algorithm in effect
type Mode string

const (
	// ModeRS256 - асимметричная подпись приватным RSA ключом
	ModeRS256 Mode = "RS256"
	// ModeHS256 - симметричная подпись общим секретом
	ModeHS256 Mode = "HS256"
)

// KeyConfig содержит исходный материал ключей (PEM и секрет)
type KeyConfig struct {
	Secret        []byte
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
}

// runtimeFallbackReason is reported once RS256 signing failed after startup
const runtimeFallbackReason = "rs256 signing failed at runtime"

// Keys is the signing and verification material of a process.
// Build it once at startup with LoadKeys and share it by pointer.
// The key material is immutable; the only state change is the one-way
// runtime fallback to HS256 set by Signer.
type Keys struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	mode       Mode
	reason     string
	secret     []byte
	fellBack   atomic.Bool
	degraded   bool
}

// LoadKeys parses key material.
//
// A malformed private key does not fail startup: the keys degrade to HS256
// and the degradation is reported once through logger. The public key is
// dropped in that case, so that the process can still verify tokens it signs.
// A malformed public key without a private key is an error, since nothing
// could be verified with it.
func LoadKeys(logger *slog.Logger, cfg KeyConfig) (*Keys, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	k := &Keys{
		secret: append([]byte(nil), cfg.Secret...),
		mode:   ModeHS256,
	}

	if len(cfg.PrivateKeyPEM) > 0 {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			k.degraded = true
			k.reason = "private key is not a valid PEM RSA key"
			logger.Warn("signing key degraded",
				slog.String("mode", string(ModeHS256)),
				slog.String("reason", k.reason),
				slog.Any("error", err))
			return k, nil
		}
		k.privateKey = priv
		k.publicKey = &priv.PublicKey
		k.mode = ModeRS256
	}

	if len(cfg.PublicKeyPEM) > 0 {
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		switch {
		case err != nil && k.privateKey == nil:
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		case err != nil:
			logger.Warn("public key ignored, derived from private key", slog.Any("error", err))
		case k.privateKey != nil && !pub.Equal(&k.privateKey.PublicKey):
			logger.Warn("public key does not match private key, derived from private key")
		default:
			k.publicKey = pub
		}
	}

	logger.Info("signing keys loaded",
		slog.String("mode", string(k.mode)),
		slog.String("verify", string(k.VerifyMode())))

	return k, nil
}

// Mode returns the algorithm used for signing
func (k *Keys) Mode() Mode {
	if k.fellBack.Load() {
		return ModeHS256
	}
	return k.mode
}

// VerifyMode returns the algorithm accepted on verification.
// RS256 whenever public material is present. After a runtime fallback
// Verifier accepts HS256 signed with the secret as well.
func (k *Keys) VerifyMode() Mode {
	if k.publicKey != nil {
		return ModeRS256
	}
	return ModeHS256
}

// Degraded reports whether a configured private key was rejected at
// startup or failed to sign later
func (k *Keys) Degraded() bool {
	return k.degraded || k.fellBack.Load()
}

// DegradedReason describes why the keys degraded, empty otherwise
func (k *Keys) DegradedReason() string {
	if k.reason == "" && k.fellBack.Load() {
		return runtimeFallbackReason
	}
	return k.reason
}

// FellBack reports whether Signer switched to HS256 after startup
func (k *Keys) FellBack() bool {
	return k.fellBack.Load()
}

// markFallback records the runtime switch to HS256.
// Returns true only for the first call.
func (k *Keys) markFallback() bool {
	return k.fellBack.CompareAndSwap(false, true)
}
