package cases

import (
	"strconv"

	"go-cats/internal/middleware"
	"go-cats/pkg/sla"

	"github.com/gofiber/fiber/v2"
)

type CaseController struct {
	Service CaseService
}

func NewCaseController(service CaseService) *CaseController {
	return &CaseController{Service: service}
}

// SubmitCase godoc
// @Summary Submit a case
// @Description Assigns a case number, resolves the SLA rule and stamps the deadlines
// @Tags cases
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases [post]
func (ctrl *CaseController) SubmitCase(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	created, err := ctrl.Service.SubmitCase(c.Context(), req)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Case submitted successfully",
		"data":    created,
	})
}

// ListCases godoc
// @Summary List cases
// @Tags cases
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases [get]
func (ctrl *CaseController) ListCases(c *fiber.Ctx) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "10"), 10, 64)

	filter := CaseFilter{
		Kind:       sla.CaseKind(c.Query("kind")),
		Status:     CaseStatus(c.Query("status")),
		Priority:   c.Query("priority"),
		AssignedTo: c.Query("assigned_to"),
		SLARuleID:  c.Query("sla_rule_id"),
	}

	cases, pageInfo, err := ctrl.Service.ListCases(c.Context(), filter, page, limit)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"data": cases,
		"meta": pageInfo,
	})
}

// ListOverdue godoc
// @Summary List overdue cases
// @Tags cases
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/overdue [get]
func (ctrl *CaseController) ListOverdue(c *fiber.Ctx) error {
	cases, err := ctrl.Service.ListOverdue(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": cases})
}

// ListUrgent godoc
// @Summary List urgent cases
// @Tags cases
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/urgent [get]
func (ctrl *CaseController) ListUrgent(c *fiber.Ctx) error {
	cases, err := ctrl.Service.ListUrgent(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": cases})
}

// GetCase godoc
// @Summary Get case
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id} [get]
func (ctrl *CaseController) GetCase(c *fiber.Ctx) error {
	view, err := ctrl.Service.GetCase(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": view})
}

// GetByNumber godoc
// @Summary Get case by number
// @Tags cases
// @Produce json
// @Param number path string true "Case number"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/number/{number} [get]
func (ctrl *CaseController) GetByNumber(c *fiber.Ctx) error {
	view, err := ctrl.Service.GetByNumber(c.Context(), c.Params("number"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": view})
}

// GetSLAStatus godoc
// @Summary Get case SLA status
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id}/sla [get]
func (ctrl *CaseController) GetSLAStatus(c *fiber.Ctx) error {
	status, err := ctrl.Service.GetSLAStatus(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": status})
}

// ChangeStatus godoc
// @Summary Change case status
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id}/status [put]
func (ctrl *CaseController) ChangeStatus(c *fiber.Ctx) error {
	var req StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := ctrl.Service.ChangeStatus(c.Context(), c.Params("id"), req)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Case status updated",
		"data":    updated,
	})
}

// Assign godoc
// @Summary Assign case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/cases/{id}/assign [put]
func (ctrl *CaseController) Assign(c *fiber.Ctx) error {
	var req AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := ctrl.Service.Assign(c.Context(), c.Params("id"), req)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Case assigned",
		"data":    updated,
	})
}
