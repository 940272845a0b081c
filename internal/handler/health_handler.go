package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/mind-platform/mind-analytics-api/pkg/response"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

// Ready reports whether the record store and cache backend are reachable.
// The cache is advisory: the engine degrades to recompute without Redis, so
// a cache outage does not fail readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "cache": "ok"}

	if err := h.db.PingContext(ctx); err != nil {
		status["status"] = "unavailable"
		status["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response.Envelope{Data: status})
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status["cache"] = "degraded: " + err.Error()
		}
	} else {
		status["cache"] = "disabled"
	}

	response.JSON(c, http.StatusOK, status, nil)
}
