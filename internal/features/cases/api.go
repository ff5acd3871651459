package cases

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CaseApi struct {
	controller *CaseController
	config     *config.Config
}

func NewCaseApi(controller *CaseController, config *config.Config) api.Route {
	return &CaseApi{
		controller: controller,
		config:     config,
	}
}

func (h *CaseApi) Setup(app *fiber.App) {
	cases := app.Group("/api/cases", middleware.AuthMiddleware(h.config.SkipAuth))
	staff := middleware.RequireRole(h.config.SkipAuth, middleware.RoleOfficer, middleware.RoleSupervisor)

	cases.Post("/", h.controller.SubmitCase)
	cases.Get("/", h.controller.ListCases)
	cases.Get("/overdue", h.controller.ListOverdue)
	cases.Get("/urgent", h.controller.ListUrgent)
	cases.Get("/number/:number", h.controller.GetByNumber)
	cases.Get("/:id", h.controller.GetCase)
	cases.Get("/:id/sla", h.controller.GetSLAStatus)
	cases.Put("/:id/status", staff, h.controller.ChangeStatus)
	cases.Put("/:id/assign", middleware.RequireRole(h.config.SkipAuth, middleware.RoleSupervisor), h.controller.Assign)
}
