package storage

import (
	"context"
	"time"
)

// SessionStore stores the client session between runs.
// Only the access token and the cached identity live here;
// the refresh token is an HttpOnly cookie kept in Cookies as-is.
type SessionStore interface {
	// SaveSession replaces the stored session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns ErrSessionNotFound when nothing is stored
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession returns ErrSessionNotFound when nothing is stored
	DeleteSession(ctx context.Context) error
}

// Identity is the cached user identity
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Cookie is a persisted cookie of the server origin
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session represents the stored client session
type Session struct {
	UpdatedAt   time.Time `json:"updated_at"`
	Identity    Identity  `json:"identity"`
	AccessToken string    `json:"access_token"`
	Cookies     []Cookie  `json:"cookies,omitempty"`
}
