package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/learnhub/internal/server/jwt"
	"github.com/iudanet/learnhub/internal/server/storage"
	"github.com/iudanet/learnhub/pkg/api"
)

// Version заполняется при сборке через -ldflags
var Version = "dev"

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	keys    *jwt.Keys
	pingers map[string]storage.Pinger
	timeout time.Duration
}

// NewHealthHandler создает новый handler для health check.
// pingers - именованные хранилища, доступность которых проверяется.
func NewHealthHandler(logger *slog.Logger, keys *jwt.Keys, pingers map[string]storage.Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		keys:    keys,
		pingers: pingers,
		timeout: 2 * time.Second,
	}
}

// Health обрабатывает GET /healthz
// Сообщает активный режим подписи и состояние хранилищ
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := api.HealthResponse{
		Status:      "ok",
		SigningMode: string(h.keys.Mode()),
		Storage:     "ok",
		Version:     Version,
	}
	status := http.StatusOK

	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "storage ping failed", slog.String("storage", name), slog.Any("error", err))
			resp.Status = "unavailable"
			resp.Storage = name + ": unavailable"
			status = http.StatusServiceUnavailable
			break
		}
	}

	if h.keys.Degraded() {
		resp.SigningMode += " (degraded)"
	}

	sendJSON(h.logger, w, resp, status)
}
