package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/learnhub/internal/client/storage"
)

// создаём тестовое BoltDB хранилище
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "session_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	store.now = func() time.Time { return time.Date(2026, 1, 4, 11, 0, 0, 0, time.UTC) }
	return store
}

func TestStorage_SaveGetDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// До сохранения сессии нет
	_, err := store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	session := &storage.Session{
		AccessToken: "access-token",
		Identity:    storage.Identity{UserID: "user-1", Email: "a@x.com", Name: "Alice"},
		Cookies:     []storage.Cookie{{Name: "refreshToken", Value: "secret"}},
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveSession(ctx, session))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	require.NoError(t, store.DeleteSession(ctx))

	_, err = store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	// Повторное удаление сообщает об отсутствии сессии
	assert.ErrorIs(t, store.DeleteSession(ctx), storage.ErrSessionNotFound)
}

func TestStorage_AccessToken(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	identity := storage.Identity{UserID: "user-1", Email: "a@x.com", Name: "Alice"}
	require.NoError(t, store.SaveToken(ctx, "token-1", identity))

	token, err = store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity, got.Identity)
	assert.Equal(t, store.now(), got.UpdatedAt)
}

func TestStorage_SaveTokenKeepsCookies(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	identity := storage.Identity{UserID: "user-1"}
	require.NoError(t, store.SaveToken(ctx, "token-1", identity))

	cookies := []storage.Cookie{{Name: "refreshToken", Value: "secret"}}
	require.NoError(t, store.SaveCookies(ctx, cookies))

	require.NoError(t, store.SaveToken(ctx, "token-2", identity))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", got.AccessToken)
	assert.Equal(t, cookies, got.Cookies)
}

func TestStorage_SaveCookiesWithoutSession(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.SaveCookies(ctx, []storage.Cookie{{Name: "refreshToken", Value: "secret"}}))

	_, err := store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestStorage_Clear(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Без сессии не ошибка
	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.SaveToken(ctx, "token-1", storage.Identity{UserID: "user-1"}))
	require.NoError(t, store.Clear(ctx))

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestStorage_Closed(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	require.NoError(t, store.Close())

	_, err := store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.SaveSession(ctx, &storage.Session{}), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.DeleteSession(ctx), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.SaveToken(ctx, "t", storage.Identity{}), storage.ErrStorageClosed)
}
