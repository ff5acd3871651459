package report

import (
	"fmt"
	"strconv"

	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	ReportService ReportService
}

func NewReportController(reportService ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// Statistics godoc
// Latest snapshot per rule, or the snapshot history of one rule with ?rule_id=
// @Summary SLA rule statistics
// @Tags reports
// @Produce json
// @Param rule_id query string false "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/statistics [get]
func (c *ReportController) Statistics(ctx *fiber.Ctx) error {
	if ruleID := ctx.Query("rule_id"); ruleID != "" {
		limit, _ := strconv.ParseInt(ctx.Query("limit", "20"), 10, 64)
		stats, err := c.ReportService.StatisticsHistory(ctx.Context(), ruleID, limit)
		if err != nil {
			return middleware.ErrorResponse(ctx, err)
		}
		return ctx.JSON(fiber.Map{"data": stats})
	}

	stats, err := c.ReportService.LatestStatistics(ctx.Context())
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}
	return ctx.JSON(fiber.Map{"data": stats})
}

// Recompute godoc
// @Summary Recompute SLA rule statistics
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/statistics/recompute [post]
func (c *ReportController) Recompute(ctx *fiber.Ctx) error {
	stats, err := c.ReportService.RecomputeStatistics(ctx.Context())
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}
	return ctx.JSON(fiber.Map{"data": stats})
}

// ExportCompliance godoc
// @Summary Export SLA compliance workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/sla/reports/compliance.xlsx [get]
func (c *ReportController) ExportCompliance(ctx *fiber.Ctx) error {
	data, filename, err := c.ReportService.ExportCompliance(ctx.Context())
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}
