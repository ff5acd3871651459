package escalation

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type EscalationApi struct {
	controller *EscalationController
	config     *config.Config
}

func NewEscalationApi(controller *EscalationController, config *config.Config) api.Route {
	return &EscalationApi{
		controller: controller,
		config:     config,
	}
}

func (h *EscalationApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)

	app.Post("/api/sla/evaluate", auth, middleware.RequireRole(h.config.SkipAuth, middleware.RoleSLAAdmin), h.controller.RunEvaluation)
	app.Get("/api/sla/evaluations", auth, middleware.RequireRole(h.config.SkipAuth, middleware.RoleSLAAdmin, middleware.RoleSupervisor), h.controller.ListRuns)
	app.Post("/api/cases/:id/evaluate", auth, middleware.RequireRole(h.config.SkipAuth, middleware.RoleSupervisor), h.controller.EvaluateCase)
}
