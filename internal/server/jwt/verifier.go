package jwt

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks access tokens using only public material.
// It never touches the refresh token store.
type Verifier struct {
	keys      *Keys
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
	fallback  *jwt.Parser
	secret    []byte
}

// NewVerifier creates a verifier for keys.
// When public material is present only RS256 is accepted, unless the
// signer has fallen back to HS256 at runtime.
func NewVerifier(keys *Keys) *Verifier {
	v := &Verifier{
		keys:      keys,
		publicKey: keys.publicKey,
		secret:    keys.secret,
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{string(keys.VerifyMode())}),
		jwt.WithExpirationRequired(),
	)
	v.fallback = jwt.NewParser(
		jwt.WithValidMethods([]string{string(ModeRS256), string(ModeHS256)}),
		jwt.WithExpirationRequired(),
	)
	return v
}

// Verify validates and parses access token
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	parser := v.parser
	if v.keys.FellBack() {
		parser = v.fallback
	}

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

// Authenticate parses an Authorization header value and verifies the bearer token
func (v *Verifier) Authenticate(header string) (*Claims, error) {
	if header == "" {
		return nil, ErrMissingAuthorizationHeader
	}

	// Ожидаем ровно два токена: "Bearer <token>"
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, ErrMalformedAuthorizationHeader
	}

	return v.Verify(parts[1])
}

// keyFunc picks the key by method, so the public key is never used as an
// HMAC secret
func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.publicKey != nil {
			return v.publicKey, nil
		}
	case *jwt.SigningMethodHMAC:
		if v.publicKey == nil || v.keys.FellBack() {
			return v.secret, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}
