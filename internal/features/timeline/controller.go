package timeline

import (
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TimelineController struct {
	Service TimelineService
}

func NewTimelineController(service TimelineService) *TimelineController {
	return &TimelineController{Service: service}
}

// GetTimeline godoc
// @Summary Get case timeline
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id}/timeline [get]
func (ctrl *TimelineController) GetTimeline(c *fiber.Ctx) error {
	entries, err := ctrl.Service.ListForCase(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": entries})
}
