// Package app wires storage, the token issuer and the HTTP layer of the
// user service and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/learnhub/internal/config"
	"github.com/iudanet/learnhub/internal/crypto"
	"github.com/iudanet/learnhub/internal/server/auth"
	"github.com/iudanet/learnhub/internal/server/handlers"
	"github.com/iudanet/learnhub/internal/server/jwt"
	"github.com/iudanet/learnhub/internal/server/middleware"
	"github.com/iudanet/learnhub/internal/server/storage"
	"github.com/iudanet/learnhub/internal/server/storage/postgres"
	redisstore "github.com/iudanet/learnhub/internal/server/storage/redis"
	"github.com/iudanet/learnhub/internal/server/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// App is the assembled user service
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	keys    *jwt.Keys
	service *auth.Service
	limiter *middleware.RateLimiter
	handler http.Handler
	closers []func() error
}

// New opens storage and builds the service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.UsesDefaultSecret() {
		logger.WarnContext(ctx, "using default JWT secret, set JWT_SECRET in production")
	}

	keys, err := jwt.LoadKeys(logger, jwt.KeyConfig{
		Secret:        []byte(cfg.JWTSecret),
		PrivateKeyPEM: []byte(cfg.JWTPrivateKey),
		PublicKeyPEM:  []byte(cfg.JWTPublicKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	a.keys = keys

	users, tokens, pingers, err := a.openStorage(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	hasher, err := crypto.NewRefreshHasher(cfg.HashKey())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	signer := jwt.NewSigner(logger, keys, cfg.AccessTTL)
	a.service = auth.NewService(logger, users, tokens, signer, hasher, auth.WithRefreshTTL(cfg.RefreshTTL()))
	a.limiter = middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute, logger)

	a.handler = NewRouter(RouterDeps{
		Logger:       logger,
		Service:      a.service,
		Keys:         keys,
		Pingers:      pingers,
		LoginLimiter: a.limiter,
		Cookie:       handlers.CookieConfig{Secure: cfg.CookieSecure},

		AllowUserReset: cfg.AllowUserReset,
	})

	logger.InfoContext(ctx, "user service configured",
		slog.String("signing_mode", string(keys.Mode())),
		slog.String("db_driver", cfg.DBDriver),
		slog.Bool("redis_tokens", cfg.RedisAddr != ""),
		slog.Duration("access_ttl", cfg.AccessTTL),
		slog.Duration("refresh_ttl", cfg.RefreshTTL()),
	)

	return a, nil
}

// openStorage выбирает хранилища: пользователи всегда в SQL,
// refresh token в Redis, если задан адрес, иначе в той же БД.
func (a *App) openStorage(ctx context.Context) (storage.UserStorage, storage.TokenStorage, map[string]storage.Pinger, error) {
	pingers := make(map[string]storage.Pinger)

	var (
		users  storage.UserStorage
		tokens storage.TokenStorage
	)

	switch a.cfg.DBDriver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, a.cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		users, tokens = s, s
		pingers["sqlite"] = s
	default:
		s, err := postgres.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		users, tokens = s, s
		pingers["postgres"] = s
	}

	if a.cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		a.closers = append(a.closers, rdb.Close)

		store := redisstore.NewTokenStore(rdb)
		if err := store.Ping(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		tokens = store
		pingers["redis"] = store
	}

	return users, tokens, pingers, nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.handler
}

// Keys returns the signing material in effect
func (a *App) Keys() *jwt.Keys {
	return a.keys
}

// Run purges expired refresh tokens once, then serves HTTP on ln until ctx
// is cancelled, and shuts down gracefully.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	if n, err := a.service.PurgeExpired(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to purge expired refresh tokens", slog.Any("error", err))
	} else if n > 0 {
		a.logger.InfoContext(ctx, "purged expired refresh tokens", slog.Int("count", n))
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "HTTP server started", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	return nil
}

// Close stops the rate limiter and closes storage connections
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
