package system

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SystemApi struct {
	controller *SystemController
	config     *config.Config
}

func NewSystemApi(controller *SystemController, cfg *config.Config) api.Route {
	return &SystemApi{
		controller: controller,
		config:     cfg,
	}
}

// Setup registers health, metrics and debug routes
func (h *SystemApi) Setup(app *fiber.App) {
	app.Get("/health", h.controller.Health)
	app.Get("/metrics", h.controller.Metrics())

	debug := app.Group("/api/debug", middleware.AuthMiddleware(h.config.SkipAuth))
	debug.Get("/me", h.controller.GetCurrentUser)
}
