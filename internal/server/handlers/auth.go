package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/learnhub/internal/server/auth"
	"github.com/iudanet/learnhub/pkg/api"
)

// CookieConfig управляет атрибутами refresh cookie
type CookieConfig struct {
	Secure bool
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service *auth.Service
	cookie  CookieConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service *auth.Service, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
		cookie:  cookie,
	}
}

// Login обрабатывает POST /users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	sendJSON(h.logger, w, authResponse(session), http.StatusOK)
}

// Refresh обрабатывает POST /token/refresh.
// Access token не требуется: refresh cookie сам является credential.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context(), refreshCookie(r))
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	sendJSON(h.logger, w, authResponse(session), http.StatusOK)
}

// Logout обрабатывает POST /users/logout.
// Cookie очищается всегда, даже если запись не найдена.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), refreshCookie(r))

	h.clearRefreshCookie(w)

	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: "Logged out"}, http.StatusOK)
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, secret string) {
	ttl := h.service.RefreshTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     api.RefreshCookieName,
		Value:    secret,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(api.RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func authResponse(s *auth.Session) api.AuthResponse {
	return api.AuthResponse{
		ID:    s.User.ID,
		Email: s.User.Email,
		Name:  s.User.Name,
		Token: s.AccessToken,
	}
}
