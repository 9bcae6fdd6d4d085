package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/learnhub/internal/models"
	"github.com/iudanet/learnhub/internal/server/auth"
	"github.com/iudanet/learnhub/internal/server/jwt"
	"github.com/iudanet/learnhub/pkg/api"
)

// UsersHandler обрабатывает регистрацию и профиль пользователя
type UsersHandler struct {
	logger  *slog.Logger
	service *auth.Service
}

// NewUsersHandler создает новый handler пользователей
func NewUsersHandler(logger *slog.Logger, service *auth.Service) *UsersHandler {
	return &UsersHandler{logger: logger, service: service}
}

// Register обрабатывает POST /users/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" || req.Name == "" {
		sendError(h.logger, w, KindInvalidInput, "email, password, name are required", http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, userResponse(user), http.StatusCreated)
}

// Me обрабатывает GET /users/me.
// Маршрут защищен middleware, claims уже в контексте; профиль читается из хранилища.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	user, err := h.service.User(r.Context(), claims.UserID())
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, userResponse(user), http.StatusOK)
}

// List обрабатывает GET /users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	resp := make([]api.UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, userResponse(user))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /users/{id}.
// Неизвестный id здесь - 404, а не 401 как для владельца токена.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.User(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			sendError(h.logger, w, KindUserNotFound, "user not found", http.StatusNotFound)
			return
		}
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, userResponse(user), http.StatusOK)
}

// UpdateName обрабатывает PUT /users/{id}
func (h *UsersHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req api.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode update request", slog.Any("error", err))
		sendError(h.logger, w, KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateName(ctx, claims.UserID(), r.PathValue("id"), req.Name)
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, userResponse(user), http.StatusOK)
}

// ChangePassword обрабатывает PUT /users/{id}/password.
// После смены все refresh token пользователя отозваны, cookie текущего клиента тоже.
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req api.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode password request", slog.Any("error", err))
		sendError(h.logger, w, KindInvalidInput, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(ctx, claims.UserID(), r.PathValue("id"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: "password changed"}, http.StatusOK)
}

// Delete обрабатывает DELETE /users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), claims.UserID(), r.PathValue("id")); err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll обрабатывает DELETE /users.
// Маршрут регистрируется только при включенном ALLOW_USER_RESET.
func (h *UsersHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	n, err := h.service.DeleteAllUsers(r.Context())
	if err != nil {
		sendServiceError(h.logger, w, r, err)
		return
	}

	h.logger.WarnContext(r.Context(), "user reset requested", slog.String("user_id", claims.UserID()))
	sendJSON(h.logger, w, api.DeleteUsersResponse{Deleted: n}, http.StatusOK)
}

// claims достает claims, положенные AuthMiddleware.
// Их отсутствие - ошибка сборки маршрутов.
func (h *UsersHandler) claims(w http.ResponseWriter, r *http.Request) (*jwt.Claims, bool) {
	claims, ok := jwt.FromContext(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "claims missing from request context")
		sendError(h.logger, w, KindInternal, "internal server error", http.StatusInternalServerError)
	}
	return claims, ok
}

func userResponse(user *models.User) api.UserResponse {
	return api.UserResponse{ID: user.ID, Email: user.Email, Name: user.Name}
}
