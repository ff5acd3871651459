package escalation

import (
	"strconv"

	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type EscalationController struct {
	Service EscalationService
}

func NewEscalationController(service EscalationService) *EscalationController {
	return &EscalationController{Service: service}
}

// RunEvaluation godoc
// @Summary Evaluate all open cases
// @Tags sla
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/evaluate [post]
func (ctrl *EscalationController) RunEvaluation(c *fiber.Ctx) error {
	run, err := ctrl.Service.RunEvaluation(c.Context(), TriggerManual)
	if err != nil && run == nil {
		return middleware.ErrorResponse(c, err)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"data":  run,
		})
	}
	return c.JSON(fiber.Map{"data": run})
}

// ListRuns godoc
// @Summary List evaluation runs
// @Tags sla
// @Produce json
// @Param limit query int false "Limit"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/evaluations [get]
func (ctrl *EscalationController) ListRuns(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	runs, err := ctrl.Service.ListRuns(c.Context(), limit)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": runs})
}

// EvaluateCase godoc
// @Summary Evaluate one case
// @Tags sla
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id}/evaluate [post]
func (ctrl *EscalationController) EvaluateCase(c *fiber.Ctx) error {
	ev, err := ctrl.Service.EvaluateCase(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": ev})
}
