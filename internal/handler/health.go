package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the backing stores answer.  Either
// dependency may be nil when the server runs without it.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health returns "ok" with 200, or 503 naming the first dependency that
// does not answer within two seconds.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "mysql: "+err.Error())
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			return c.String(http.StatusServiceUnavailable, "redis: "+err.Error())
		}
	}
	return c.String(http.StatusOK, "ok")
}
