package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/learnhub/internal/client/storage"
	"github.com/iudanet/learnhub/pkg/api"
)

// memStore - TokenStore в памяти
type memStore struct {
	identity storage.Identity
	token    string
	cleared  int
	mu       sync.Mutex
}

func (s *memStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memStore) SaveToken(ctx context.Context, token string, identity storage.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.identity = identity
	return nil
}

func (s *memStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = storage.Identity{}
	s.cleared++
	return nil
}

func (s *memStore) snapshot() (string, storage.Identity, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.identity, s.cleared
}

type recordingNotifier struct {
	messages []string
	mu       sync.Mutex
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type recordingNavigator struct {
	current string
	visited []string
	mu      sync.Mutex
}

func (n *recordingNavigator) CurrentView() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recordingNavigator) Navigate(view string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = view
	n.visited = append(n.visited, view)
}

func (n *recordingNavigator) visits() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.visited...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeServer эмулирует сервис пользователей: /users/me принимает только
// токен validToken, /token/refresh выдает его при наличии cookie.
type fakeServer struct {
	*httptest.Server
	refreshGate   chan struct{}
	validToken    string
	refreshStatus int
	refreshDelay  time.Duration
	refreshCalls  atomic.Int32
	meCalls       atomic.Int32
	meAlways401   bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{validToken: "fresh-token", refreshStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "InvalidCredentials", Message: "invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: api.RefreshCookieName, Value: "refresh-1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, api.AuthResponse{ID: "user-1", Email: req.Email, Name: "Alice", Token: "login-token"})
	})
	mux.HandleFunc("POST /token/refresh", func(w http.ResponseWriter, r *http.Request) {
		fs.refreshCalls.Add(1)
		if fs.refreshGate != nil {
			<-fs.refreshGate
		}
		if fs.refreshDelay > 0 {
			time.Sleep(fs.refreshDelay)
		}
		if _, err := r.Cookie(api.RefreshCookieName); err != nil {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "NoRefreshToken"})
			return
		}
		if fs.refreshStatus != http.StatusOK {
			writeJSON(w, fs.refreshStatus, api.ErrorResponse{Error: "InvalidRefreshToken"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: api.RefreshCookieName, Value: "refresh-2", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, api.AuthResponse{ID: "user-1", Email: "a@x.com", Name: "Alice", Token: fs.validToken})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		fs.meCalls.Add(1)
		if fs.meAlways401 || r.Header.Get("Authorization") != "Bearer "+fs.validToken {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "InvalidOrExpiredToken"})
			return
		}
		writeJSON(w, http.StatusOK, api.UserResponse{ID: "user-1", Name: "Alice"})
	})
	mux.HandleFunc("POST /users/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: api.RefreshCookieName, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Logged out"})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(fs *fakeServer, store TokenStore, opts ...Option) *Client {
	return NewClient(fs.URL, store, opts...)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("http://localhost:4001", &memStore{})

	assert.Equal(t, "http://localhost:4001", client.baseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.httpClient.Jar)
	assert.Equal(t, defaultRefreshTimeout, client.refreshTimeout)
	assert.Equal(t, defaultRedirectDelay, client.redirectDelay)
	assert.Equal(t, "/login", client.loginView)
	assert.NotNil(t, client.group)
}

func TestClient_Login(t *testing.T) {
	fs := newFakeServer(t)
	store := &memStore{}
	client := newTestClient(fs, store)

	resp, err := client.Login(context.Background(), api.LoginRequest{Email: "a@x.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "login-token", resp.Token)

	token, identity, _ := store.snapshot()
	assert.Equal(t, "login-token", token)
	assert.Equal(t, storage.Identity{UserID: "user-1", Email: "a@x.com", Name: "Alice"}, identity)

	// Refresh token хранится только в cookie jar
	assert.Equal(t, []storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-1"}}, client.Cookies())
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	fs := newFakeServer(t)
	store := &memStore{}
	client := newTestClient(fs, store)

	resp, err := client.Login(context.Background(), api.LoginRequest{Email: "a@x.com", Password: "wrong"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsKind(err, "InvalidCredentials"))
	assert.Contains(t, err.Error(), "server error (401): invalid email or password")

	token, _, _ := store.snapshot()
	assert.Empty(t, token)
}

func TestClient_Fetch_AttachesBearer(t *testing.T) {
	fs := newFakeServer(t)
	store := &memStore{token: "fresh-token"}
	client := newTestClient(fs, store)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, int32(0), fs.refreshCalls.Load())
}

func TestClient_Fetch_RefreshesAndRetriesOnce(t *testing.T) {
	fs := newFakeServer(t)
	store := &memStore{token: "expired-token"}
	client := newTestClient(fs, store)
	require.NoError(t, client.SetCookies([]storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-1"}}))

	resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), fs.refreshCalls.Load())
	assert.Equal(t, int32(2), fs.meCalls.Load())

	token, _, _ := store.snapshot()
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, []storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-2"}}, client.Cookies())
}

func TestClient_Fetch_SecondFailureIsReturnedAsIs(t *testing.T) {
	fs := newFakeServer(t)
	fs.meAlways401 = true
	store := &memStore{token: "expired-token"}
	client := newTestClient(fs, store)
	require.NoError(t, client.SetCookies([]storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-1"}}))

	resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), fs.refreshCalls.Load(), "only one refresh per call")
	assert.Equal(t, int32(2), fs.meCalls.Load(), "only one retry per call")
}

func TestClient_Fetch_RefreshFailureExpiresSession(t *testing.T) {
	tests := []struct {
		setup        func(fs *fakeServer, c *Client)
		name         string
		currentView  string
		wantRedirect bool
	}{
		{
			name:         "refresh rejected",
			currentView:  "/dashboard",
			wantRedirect: true,
			setup: func(fs *fakeServer, c *Client) {
				fs.refreshStatus = http.StatusUnauthorized
				_ = c.SetCookies([]storage.Cookie{{Name: api.RefreshCookieName, Value: "stale"}})
			},
		},
		{
			name:         "no refresh cookie",
			currentView:  "/dashboard",
			wantRedirect: true,
			setup:        func(fs *fakeServer, c *Client) {},
		},
		{
			name:        "already on login view",
			currentView: "/login",
			setup: func(fs *fakeServer, c *Client) {
				fs.refreshStatus = http.StatusUnauthorized
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			store := &memStore{token: "expired-token", identity: storage.Identity{UserID: "user-1"}}
			notifier := &recordingNotifier{}
			navigator := &recordingNavigator{current: tt.currentView}
			client := newTestClient(fs, store,
				WithNotifier(notifier),
				WithNavigator(navigator),
				WithRedirectDelay(0),
			)
			tt.setup(fs, client)

			resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			// Возвращается исходный ответ, тело читается
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), "InvalidOrExpiredToken")

			assert.Equal(t, int32(1), fs.meCalls.Load(), "no retry after failed refresh")

			token, identity, cleared := store.snapshot()
			assert.Empty(t, token)
			assert.Empty(t, identity)
			assert.Equal(t, 1, cleared)
			assert.Equal(t, 1, notifier.count())

			if tt.wantRedirect {
				assert.Equal(t, []string{"/login"}, navigator.visits())
			} else {
				assert.Empty(t, navigator.visits())
			}
		})
	}
}

func TestClient_Fetch_RedirectIsDelayed(t *testing.T) {
	fs := newFakeServer(t)
	fs.refreshStatus = http.StatusUnauthorized
	navigator := &recordingNavigator{current: "/dashboard"}
	client := newTestClient(fs, &memStore{token: "expired"},
		WithNavigator(navigator),
		WithRedirectDelay(50*time.Millisecond),
	)

	resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, navigator.visits(), "redirect must wait for the delay")
	assert.Eventually(t, func() bool {
		return len(navigator.visits()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClient_Fetch_RefreshTimeoutIsFailure(t *testing.T) {
	fs := newFakeServer(t)
	fs.refreshDelay = 200 * time.Millisecond
	store := &memStore{token: "expired"}
	notifier := &recordingNotifier{}
	client := newTestClient(fs, store,
		WithNotifier(notifier),
		WithRefreshTimeout(20*time.Millisecond),
	)
	require.NoError(t, client.SetCookies([]storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-1"}}))

	resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, notifier.count())
}

func TestClient_Fetch_CoalescesConcurrentRefresh(t *testing.T) {
	const callers = 5

	fs := newFakeServer(t)
	fs.refreshGate = make(chan struct{})
	store := &memStore{token: "expired"}
	client := newTestClient(fs, store)
	require.NoError(t, client.SetCookies([]storage.Cookie{{Name: api.RefreshCookieName, Value: "refresh-1"}}))

	var wg sync.WaitGroup
	statuses := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Fetch(context.Background(), http.MethodGet, PathMe, nil, nil)
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}

	// Ждем, пока все вызовы получат 401 и встанут в очередь на refresh
	require.Eventually(t, func() bool { return fs.meCalls.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fs.refreshGate)
	wg.Wait()

	assert.Equal(t, int32(1), fs.refreshCalls.Load())
	for _, s := range statuses {
		assert.Equal(t, http.StatusOK, s)
	}
}

func TestClient_Fetch_ReplaysBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("POST /things", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.AuthResponse{ID: "user-1", Token: "new"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, &memStore{token: "old"})
	resp, err := client.Fetch(context.Background(), http.MethodPost, "/things", []byte(`{"a":1}`), http.Header{"X-Custom": []string{"yes"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"a":1}`, `{"a":1}`}, bodies)
}

func TestClient_Logout(t *testing.T) {
	fs := newFakeServer(t)
	store := &memStore{}
	client := newTestClient(fs, store)

	_, err := client.Login(context.Background(), api.LoginRequest{Email: "a@x.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background()))

	token, _, cleared := store.snapshot()
	assert.Empty(t, token)
	assert.Equal(t, 1, cleared)
	assert.Empty(t, client.Cookies(), "server cleared the refresh cookie")
}

func TestClient_Logout_ServerDownStillClears(t *testing.T) {
	store := &memStore{token: "t"}
	client := NewClient("http://127.0.0.1:1", store, WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))

	err := client.Logout(context.Background())
	assert.Error(t, err)

	token, _, cleared := store.snapshot()
	assert.Empty(t, token)
	assert.Equal(t, 1, cleared)
}

func TestClient_Register(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathRegister, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email == "taken@x.com" {
			writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: "EmailTaken", Message: "email already registered"})
			return
		}
		writeJSON(w, http.StatusCreated, api.UserResponse{ID: "user-1", Email: req.Email, Name: req.Name})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &memStore{})

	user, err := client.Register(context.Background(), api.RegisterRequest{Email: "a@x.com", Password: "secret", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	_, err = client.Register(context.Background(), api.RegisterRequest{Email: "taken@x.com", Password: "secret", Name: "Bob"})
	require.Error(t, err)
	assert.True(t, IsKind(err, "EmailTaken"))
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "request failed with status 500", (&StatusError{StatusCode: 500}).Error())
	assert.Equal(t, "server error (409): taken", (&StatusError{StatusCode: 409, Message: "taken"}).Error())
}
