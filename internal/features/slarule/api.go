package slarule

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type RuleApi struct {
	controller *RuleController
	config     *config.Config
}

func NewRuleApi(controller *RuleController, config *config.Config) api.Route {
	return &RuleApi{
		controller: controller,
		config:     config,
	}
}

func (h *RuleApi) Setup(app *fiber.App) {
	rules := app.Group("/api/sla/rules", middleware.AuthMiddleware(h.config.SkipAuth))
	admin := middleware.RequireRole(h.config.SkipAuth, middleware.RoleSLAAdmin)

	rules.Get("/", h.controller.ListRules)
	rules.Post("/", admin, h.controller.CreateRule)
	rules.Get("/expired", h.controller.ListExpired)
	rules.Post("/preview", h.controller.Preview)
	rules.Get("/:id", h.controller.GetRule)
	rules.Put("/:id", admin, h.controller.UpdateRule)
	rules.Delete("/:id", admin, h.controller.DeleteRule)
	rules.Post("/:id/holidays/:date", admin, h.controller.AddHoliday)
	rules.Delete("/:id/holidays/:date", admin, h.controller.RemoveHoliday)
	rules.Put("/:id/default", admin, h.controller.SetDefault)
}
