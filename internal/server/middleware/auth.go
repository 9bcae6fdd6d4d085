package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/learnhub/internal/server/jwt"
)

// Виды ошибок аутентификации запроса
const (
	KindMissingAuthorizationHeader   = "MissingAuthorizationHeader"
	KindMalformedAuthorizationHeader = "MalformedAuthorizationHeader"
	KindInvalidOrExpiredToken        = "InvalidOrExpiredToken"
)

// AuthMiddleware создает middleware для проверки access token.
// Проверка stateless: хранилище refresh token не используется.
// Claims кладутся в контекст, достать их можно через jwt.FromContext.
func AuthMiddleware(logger *slog.Logger, verifier *jwt.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, err := verifier.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				kind, message := authFailure(err)
				// Содержимое токена не логируем
				logger.WarnContext(ctx, "request authentication failed",
					slog.String("reason", kind),
					slog.String("path", r.URL.Path),
				)
				writeError(w, kind, message, http.StatusUnauthorized)
				return
			}

			logger.DebugContext(ctx, "request authenticated", slog.String("user_id", claims.UserID()))

			next.ServeHTTP(w, r.WithContext(jwt.NewContext(ctx, claims)))
		})
	}
}

func authFailure(err error) (kind, message string) {
	switch {
	case errors.Is(err, jwt.ErrMissingAuthorizationHeader):
		return KindMissingAuthorizationHeader, jwt.ErrMissingAuthorizationHeader.Error()
	case errors.Is(err, jwt.ErrMalformedAuthorizationHeader):
		return KindMalformedAuthorizationHeader, jwt.ErrMalformedAuthorizationHeader.Error()
	default:
		return KindInvalidOrExpiredToken, jwt.ErrInvalidOrExpiredToken.Error()
	}
}
