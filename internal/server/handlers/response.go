package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/learnhub/internal/server/auth"
	"github.com/iudanet/learnhub/pkg/api"
)

// Виды ошибок в поле error JSON ответа
const (
	KindInvalidInput        = "InvalidInput"
	KindInvalidCredentials  = "InvalidCredentials"
	KindEmailTaken          = "EmailTaken"
	KindNoRefreshToken      = "NoRefreshToken"
	KindInvalidRefreshToken = "InvalidRefreshToken"
	KindRefreshTokenExpired = "RefreshTokenExpired"
	KindUserNotFound        = "UserNotFound"
	KindForbidden           = "Forbidden"
	KindInternal            = "InternalError"
)

// authErrors maps issuer errors to status, kind and a short message
var authErrors = []struct {
	err     error
	kind    string
	message string
	status  int
}{
	{auth.ErrInvalidInput, KindInvalidInput, "", http.StatusBadRequest},
	{auth.ErrInvalidCredentials, KindInvalidCredentials, "invalid credentials", http.StatusUnauthorized},
	{auth.ErrEmailTaken, KindEmailTaken, "email already registered", http.StatusConflict},
	{auth.ErrNoRefreshToken, KindNoRefreshToken, "refresh token required", http.StatusUnauthorized},
	{auth.ErrInvalidRefreshToken, KindInvalidRefreshToken, "invalid refresh token", http.StatusUnauthorized},
	{auth.ErrRefreshTokenExpired, KindRefreshTokenExpired, "refresh token expired", http.StatusUnauthorized},
	{auth.ErrUserNotFound, KindUserNotFound, "user not found", http.StatusUnauthorized},
	{auth.ErrForbidden, KindForbidden, "not allowed to modify another user", http.StatusForbidden},
}

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(logger *slog.Logger, w http.ResponseWriter, kind, message string, statusCode int) {
	sendJSON(logger, w, api.ErrorResponse{Error: kind, Message: message}, statusCode)
}

// sendServiceError переводит ошибку сервиса в HTTP ответ.
// Неизвестные ошибки логируются и отдаются как 500 без подробностей.
func sendServiceError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range authErrors {
		if errors.Is(err, e.err) {
			message := e.message
			if message == "" {
				message = err.Error()
			}
			sendError(logger, w, e.kind, message, e.status)
			return
		}
	}

	logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
	sendError(logger, w, KindInternal, "internal server error", http.StatusInternalServerError)
}

// decodeJSON читает тело запроса в v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
