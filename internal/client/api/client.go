package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/learnhub/internal/client/storage"
	"github.com/iudanet/learnhub/pkg/api"
)

// Пути API сервиса пользователей
const (
	PathLogin    = "/users/login"
	PathLogout   = "/users/logout"
	PathRegister = "/users/register"
	PathMe       = "/users/me"
	PathRefresh  = "/token/refresh"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRefreshTimeout = 5 * time.Second
	defaultRedirectDelay  = 800 * time.Millisecond
	defaultLoginView      = "/login"
)

// TokenStore хранит access token и закешированную личность пользователя
type TokenStore interface {
	// AccessToken returns "" when no token is stored
	AccessToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string, identity storage.Identity) error
	Clear(ctx context.Context) error
}

// Notifier показывает сообщение пользователю
type Notifier interface {
	Notify(message string)
}

// Navigator переключает текущий экран клиента
type Navigator interface {
	CurrentView() string
	Navigate(view string)
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Все запросы идут с cookie jar, поэтому refresh cookie передается автоматически.
type Client struct {
	httpClient     *http.Client
	store          TokenStore
	notifier       Notifier
	navigator      Navigator
	logger         *slog.Logger
	group          *singleflight.Group
	baseURL        string
	loginView      string
	refreshTimeout time.Duration
	redirectDelay  time.Duration
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient задает http.Client. Если у него нет Jar, создается новый.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNotifier задает получателя сообщения "сессия истекла"
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithNavigator задает навигатор для перехода на экран логина
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRefreshTimeout ограничивает время вызова refresh
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// WithRedirectDelay задает задержку перед переходом на экран логина.
// При d <= 0 переход выполняется сразу.
func WithRedirectDelay(d time.Duration) Option {
	return func(c *Client) { c.redirectDelay = d }
}

// WithLoginView задает имя экрана логина
func WithLoginView(view string) Option {
	return func(c *Client) { c.loginView = view }
}

// WithoutRefreshCoalescing отключает объединение параллельных refresh
func WithoutRefreshCoalescing() Option {
	return func(c *Client) { c.group = nil }
}

// NewClient создает новый API клиент
func NewClient(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:        baseURL,
		store:          store,
		logger:         slog.New(slog.DiscardHandler),
		group:          &singleflight.Group{},
		loginView:      defaultLoginView,
		refreshTimeout: defaultRefreshTimeout,
		redirectDelay:  defaultRedirectDelay,
		httpClient:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		// cookiejar.New с nil опциями не возвращает ошибку
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	return c
}

// Cookies returns cookies held for the server origin
func (c *Client) Cookies() []storage.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	var out []storage.Cookie
	for _, ck := range c.httpClient.Jar.Cookies(u) {
		out = append(out, storage.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// SetCookies restores persisted cookies for the server origin
func (c *Client) SetCookies(cookies []storage.Cookie) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	hc := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		hc = append(hc, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.httpClient.Jar.SetCookies(u, hc)
	return nil
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.UserResponse, error) {
	var resp api.UserResponse
	if err := c.doRequest(ctx, http.MethodPost, PathRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию и сохраняет access token.
// Refresh token остается в cookie jar.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, PathLogin, req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if err := c.store.SaveToken(ctx, resp.Token, identityOf(&resp)); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh token на сервере и всегда очищает локальную сессию.
func (c *Client) Logout(ctx context.Context) error {
	reqErr := c.doRequest(ctx, http.MethodPost, PathLogout, nil, nil)
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if reqErr != nil {
		return fmt.Errorf("logout request failed: %w", reqErr)
	}
	return nil
}

// Me возвращает текущего пользователя через защищенный маршрут
func (c *Client) Me(ctx context.Context) (*api.UserResponse, error) {
	resp, err := c.Fetch(ctx, http.MethodGet, PathMe, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var user api.UserResponse
	if err := decodeResponse(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// doRequest выполняет HTTP запрос без access token
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	resp, err := c.send(ctx, method, path, payload, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, result)
}

// send строит и выполняет запрос. token == "" - без Authorization.
func (c *Client) send(ctx context.Context, method, path string, body []byte, header http.Header, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// IsKind reports whether err is a StatusError of the given kind
func IsKind(err error, kind string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Kind == kind
}

func decodeResponse(resp *http.Response, result any) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			se.Kind = errResp.Error
			se.Message = errResp.Message
		}
		return se
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func identityOf(resp *api.AuthResponse) storage.Identity {
	return storage.Identity{UserID: resp.ID, Email: resp.Email, Name: resp.Name}
}
