package app

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/learnhub/internal/server/auth"
	"github.com/iudanet/learnhub/internal/server/handlers"
	"github.com/iudanet/learnhub/internal/server/jwt"
	"github.com/iudanet/learnhub/internal/server/middleware"
	"github.com/iudanet/learnhub/internal/server/storage"
)

// HealthPath не логируется middleware логирования
const HealthPath = "/healthz"

// RouterDeps содержит зависимости HTTP слоя
type RouterDeps struct {
	Logger       *slog.Logger
	Service      *auth.Service
	Keys         *jwt.Keys
	Pingers      map[string]storage.Pinger
	LoginLimiter *middleware.RateLimiter
	Cookie       handlers.CookieConfig

	// AllowUserReset включает DELETE /users
	AllowUserReset bool
}

// NewRouter собирает маршруты и цепочку middleware:
// recovery -> correlation -> logging -> mux
func NewRouter(d RouterDeps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.Logger, d.Service, d.Cookie)
	usersHandler := handlers.NewUsersHandler(d.Logger, d.Service)
	healthHandler := handlers.NewHealthHandler(d.Logger, d.Keys, d.Pingers)

	requireAuth := middleware.AuthMiddleware(d.Logger, jwt.NewVerifier(d.Keys))

	mux := http.NewServeMux()

	login := http.Handler(http.HandlerFunc(authHandler.Login))
	if d.LoginLimiter != nil {
		login = middleware.RateLimitMiddleware(d.LoginLimiter)(login)
	}
	mux.Handle("POST /users/login", login)
	mux.HandleFunc("POST /users/logout", authHandler.Logout)
	mux.HandleFunc("POST /users/register", usersHandler.Register)
	mux.HandleFunc("POST /token/refresh", authHandler.Refresh)

	// Защищенные маршруты
	mux.Handle("GET /users/me", requireAuth(http.HandlerFunc(usersHandler.Me)))
	mux.Handle("GET /users", requireAuth(http.HandlerFunc(usersHandler.List)))
	mux.Handle("GET /users/{id}", requireAuth(http.HandlerFunc(usersHandler.Get)))
	mux.Handle("PUT /users/{id}", requireAuth(http.HandlerFunc(usersHandler.UpdateName)))
	mux.Handle("PUT /users/{id}/password", requireAuth(http.HandlerFunc(usersHandler.ChangePassword)))
	mux.Handle("DELETE /users/{id}", requireAuth(http.HandlerFunc(usersHandler.Delete)))
	if d.AllowUserReset {
		mux.Handle("DELETE /users", requireAuth(http.HandlerFunc(usersHandler.DeleteAll)))
	}

	mux.HandleFunc("GET "+HealthPath, healthHandler.Health)

	var h http.Handler = mux
	h = middleware.LoggingMiddleware(d.Logger, HealthPath)(h)
	h = middleware.CorrelationMiddleware()(h)
	h = middleware.RecoveryMiddleware(d.Logger)(h)
	return h
}
