package jwt

import "errors"

// Access token verification errors. They are intentionally coarse.
var (
	// ErrMissingAuthorizationHeader - заголовок Authorization отсутствует
	ErrMissingAuthorizationHeader = errors.New("authorization header required")

	// ErrMalformedAuthorizationHeader - заголовок не в форме "Bearer <token>"
	ErrMalformedAuthorizationHeader = errors.New("invalid authorization header")

	// ErrInvalidOrExpiredToken covers bad signature, expiry, wrong algorithm
	// and malformed tokens alike
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
