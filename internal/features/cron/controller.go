package cron_feature

import (
	"context"
	"time"

	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CronController struct {
	Service CronService
}

func NewCronController(service CronService) *CronController {
	return &CronController{
		Service: service,
	}
}

// ListCronJobs godoc
// @Summary List cron jobs
// @Tags cron
// @Produce json
// @Success 200 {array} CronJob
// @Router /api/cron-jobs [get]
func (c *CronController) ListCronJobs(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(ctx.Context(), 10*time.Second)
	defer cancel()

	jobs, err := c.Service.ListJobs(ctxt)
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(jobs)
}

// ExecuteCronJob godoc
// @Summary Execute cron job
// @Description Manually trigger a cron job execution
// @Tags cron
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} CronJobLog
// @Router /api/cron-jobs/{name}/execute [post]
func (c *CronController) ExecuteCronJob(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(ctx.Context(), 10*time.Minute)
	defer cancel()

	logEntry, err := c.Service.ExecuteJob(ctxt, ctx.Params("name"))
	if err != nil && logEntry == nil {
		return middleware.ErrorResponse(ctx, err)
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"data":  logEntry,
		})
	}

	return ctx.JSON(logEntry)
}

// SetCronJobActive godoc
// @Summary Pause or resume a cron job
// @Tags cron
// @Accept json
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} CronJob
// @Router /api/cron-jobs/{name}/active [put]
func (c *CronController) SetCronJobActive(ctx *fiber.Ctx) error {
	var body struct {
		Active bool `json:"active"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := context.WithTimeout(ctx.Context(), 10*time.Second)
	defer cancel()

	cronJob, err := c.Service.SetJobActive(ctxt, ctx.Params("name"), body.Active)
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(cronJob)
}

// GetCronJobLogs godoc
// @Summary Get cron job logs
// @Tags cron
// @Produce json
// @Param name path string true "Job name"
// @Param limit query int false "Max logs to return"
// @Success 200 {array} CronJobLog
// @Router /api/cron-jobs/{name}/logs [get]
func (c *CronController) GetCronJobLogs(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)

	ctxt, cancel := context.WithTimeout(ctx.Context(), 10*time.Second)
	defer cancel()

	logs, err := c.Service.GetJobLogs(ctxt, ctx.Params("name"), limit)
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(logs)
}
