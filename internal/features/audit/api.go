package audit

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
}

func NewAuditApi(controller *AuditController, config *config.Config) api.Route {
	return &AuditApi{
		controller: controller,
		config:     config,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs", middleware.AuthMiddleware(h.config.SkipAuth))

	readers := middleware.RequireRole(h.config.SkipAuth, middleware.RoleSLAAdmin, middleware.RoleSupervisor)
	audit.Get("/", readers, h.controller.ListLogs)
	audit.Get("/cases/:id", readers, h.controller.CaseTrail)
	audit.Get("/rules/:id", readers, h.controller.RuleTrail)
}
