package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/onurcolak/sms-dispatch-service/pkg/redis"
)

// HealthHandler handles health checks.
type HealthHandler struct {
	db           *sqlx.DB
	redis        *redis.Client
	carriers     func() []string
	checkTimeout time.Duration
}

// NewHealthHandler builds the health handler. redisClient may be nil when
// Redis is disabled; carriers lists the configured carriers.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, carriers func() []string) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redis:        redisClient,
		carriers:     carriers,
		checkTimeout: 2 * time.Second,
	}
}

// Health returns overall status and basic component statuses.
// @Summary Health check
// @Description Returns overall status with DB, Redis and carrier availability
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"

	dbStatus := "up"
	if h.db == nil {
		dbStatus = "down"
		overallStatus = "down"
	} else if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "down"
		overallStatus = "down"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "down"
			overallStatus = "degraded"
		} else {
			redisStatus = "up"
		}
	}

	var configured []string
	if h.carriers != nil {
		configured = h.carriers()
	}
	carrierStatus := "up"
	if len(configured) == 0 {
		carrierStatus = "down"
		if overallStatus == "ok" {
			overallStatus = "degraded"
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"database": map[string]any{
				"status": dbStatus,
			},
			"redis": map[string]any{
				"status": redisStatus,
			},
			"carriers": map[string]any{
				"status":     carrierStatus,
				"configured": configured,
			},
		},
	})
}
