package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/learnhub/internal/client/storage"
)

var sessionKey = []byte("current")

// SaveSession stores the session
func (s *Storage) SaveSession(ctx context.Context, session *storage.Session) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return putSession(tx, session)
	})
}

// GetSession retrieves the stored session
func (s *Storage) GetSession(ctx context.Context) (*storage.Session, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var session *storage.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		session, err = getSession(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes the stored session (logout)
func (s *Storage) DeleteSession(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		if bucket.Get(sessionKey) == nil {
			return storage.ErrSessionNotFound
		}

		if err := bucket.Delete(sessionKey); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// AccessToken returns the stored access token, or "" when there is no session
func (s *Storage) AccessToken(ctx context.Context) (string, error) {
	session, err := s.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

// SaveToken stores a new access token together with the identity it belongs to.
// Cookies of an existing session are kept.
func (s *Storage) SaveToken(ctx context.Context, token string, identity storage.Identity) error {
	return s.update(func(session *storage.Session) {
		session.AccessToken = token
		session.Identity = identity
	}, true)
}

// SaveCookies replaces persisted cookies of an existing session.
// Without a session it does nothing.
func (s *Storage) SaveCookies(ctx context.Context, cookies []storage.Cookie) error {
	return s.update(func(session *storage.Session) {
		session.Cookies = cookies
	}, false)
}

// Clear removes the session; a missing session is not an error
func (s *Storage) Clear(ctx context.Context) error {
	err := s.DeleteSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil
	}
	return err
}

// update читает, изменяет и сохраняет сессию в одной транзакции
func (s *Storage) update(fn func(*storage.Session), create bool) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		session, err := getSession(tx)
		switch {
		case errors.Is(err, storage.ErrSessionNotFound):
			if !create {
				return nil
			}
			session = &storage.Session{}
		case err != nil:
			return err
		}

		fn(session)
		session.UpdatedAt = s.now().UTC()
		return putSession(tx, session)
	})
}

func getSession(tx *bbolt.Tx) (*storage.Session, error) {
	bucket := tx.Bucket(bucketSession)
	if bucket == nil {
		return nil, fmt.Errorf("session bucket not found")
	}

	data := bucket.Get(sessionKey)
	if data == nil {
		return nil, storage.ErrSessionNotFound
	}

	session := &storage.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

func putSession(tx *bbolt.Tx, session *storage.Session) error {
	bucket := tx.Bucket(bucketSession)
	if bucket == nil {
		return fmt.Errorf("session bucket not found")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := bucket.Put(sessionKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
