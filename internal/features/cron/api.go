package cron_feature

import (
	"go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CronApi struct {
	cronController *CronController
	config         *config.Config
}

func NewCronApi(cronController *CronController, config *config.Config) api.Route {
	return &CronApi{
		cronController: cronController,
		config:         config,
	}
}

func (h *CronApi) Setup(app *fiber.App) {
	cronJobs := app.Group("/api/cron-jobs", middleware.AuthMiddleware(h.config.SkipAuth))
	slaAdmin := middleware.RequireRole(h.config.SkipAuth, middleware.RoleSLAAdmin)

	cronJobs.Get("/", slaAdmin, h.cronController.ListCronJobs)
	cronJobs.Post("/:name/execute", slaAdmin, h.cronController.ExecuteCronJob)
	cronJobs.Put("/:name/active", slaAdmin, h.cronController.SetCronJobActive)
	cronJobs.Get("/:name/logs", slaAdmin, h.cronController.GetCronJobLogs)
}
