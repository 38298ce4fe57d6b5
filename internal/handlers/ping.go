package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type PingHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPingHandler serves liveness and readiness. The db may be nil, in
// which case readiness reports the process alone.
func NewPingHandler(log *slog.Logger, db *sql.DB) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{db: db, logger: log.With(slog.String("handler", "ping"))}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	resp := map[string]string{
		"status":  "ok",
		"service": "vitalink",
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("database unreachable", slog.Any("error", err))
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		resp["database"] = "ok"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
