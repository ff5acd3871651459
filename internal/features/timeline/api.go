package timeline

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TimelineApi struct {
	controller *TimelineController
	config     *config.Config
}

func NewTimelineApi(controller *TimelineController, config *config.Config) api.Route {
	return &TimelineApi{
		controller: controller,
		config:     config,
	}
}

func (h *TimelineApi) Setup(app *fiber.App) {
	app.Get("/api/cases/:id/timeline", middleware.AuthMiddleware(h.config.SkipAuth), h.controller.GetTimeline)
}
