package report

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	ReportController *ReportController
	Config           *config.Config
}

func NewReportApi(reportController *ReportController, config *config.Config) api.Route {
	return &ReportApi{
		ReportController: reportController,
		Config:           config,
	}
}

func (a *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/sla", middleware.AuthMiddleware(a.Config.SkipAuth))
	readers := middleware.RequireRole(a.Config.SkipAuth, middleware.RoleSLAAdmin, middleware.RoleSupervisor)

	group.Get("/statistics", readers, a.ReportController.Statistics)
	group.Post("/statistics/recompute", middleware.RequireRole(a.Config.SkipAuth, middleware.RoleSLAAdmin), a.ReportController.Recompute)
	group.Get("/reports/compliance.xlsx", readers, a.ReportController.ExportCompliance)
}
