package system

import (
	"context"
	"time"

	"go-cats/internal/database"
	"go-cats/internal/metrics"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type SystemController struct {
	ping     func(ctx context.Context) error
	registry *prometheus.Registry
}

func NewSystemController(db *database.MongodbDB, m *metrics.Metrics) *SystemController {
	return &SystemController{
		ping: func(ctx context.Context) error {
			return db.DB.Client().Ping(ctx, readpref.Primary())
		},
		registry: m.Registry,
	}
}

// Health godoc
// @Summary      Liveness and database health
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (c *SystemController) Health(ctx *fiber.Ctx) error {
	pingCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	if err := c.ping(pingCtx); err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{
		"status":   "ok",
		"database": "ok",
	})
}

// Metrics serves the Prometheus registry
func (c *SystemController) Metrics() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Get the current user's info from JWT
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *SystemController) GetCurrentUser(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return ctx.JSON(fiber.Map{
		"user_id": user.UserID,
		"roles":   user.Roles,
	})
}
