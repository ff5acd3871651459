package slarule

import (
	"encoding/json"
	"time"

	"go-cats/internal/middleware"
	"go-cats/pkg/sla"

	"github.com/gofiber/fiber/v2"
)

type RuleController struct {
	Service RuleService
}

func NewRuleController(service RuleService) *RuleController {
	return &RuleController{Service: service}
}

// CreateRule godoc
// @Summary Create SLA rule
// @Tags sla-rules
// @Accept json
// @Produce json
// @Param rule body sla.Rule true "Rule"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules [post]
func (ctrl *RuleController) CreateRule(c *fiber.Ctx) error {
	rule, err := DecodeNewRule(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.CreateRule(c.Context(), rule); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "SLA rule created successfully",
		"data":    rule,
	})
}

// ListRules godoc
// Query: case_kind, case_type, active (true|false), at (RFC3339, effective rules only)
// @Summary List SLA rules
// @Tags sla-rules
// @Produce json
// @Param case_kind query string false "Case kind"
// @Param case_type query string false "Case type"
// @Param active query bool false "Active only"
// @Param at query string false "Effective at (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules [get]
func (ctrl *RuleController) ListRules(c *fiber.Ctx) error {
	if at := c.Query("at"); at != "" {
		instant, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "at must be an RFC3339 timestamp",
			})
		}
		rules, err := ctrl.Service.ListEffective(c.Context(), instant)
		if err != nil {
			return middleware.ErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"data": rules})
	}

	filter := RuleFilter{
		CaseKind: sla.CaseKind(c.Query("case_kind")),
		CaseType: c.Query("case_type"),
	}
	if active := c.Query("active"); active != "" {
		v := active == "true"
		filter.IsActive = &v
	}

	rules, err := ctrl.Service.ListRules(c.Context(), filter)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"data": rules})
}

// ListExpired godoc
// @Summary List expired SLA rules
// @Tags sla-rules
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/expired [get]
func (ctrl *RuleController) ListExpired(c *fiber.Ctx) error {
	rules, err := ctrl.Service.ListExpired(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": rules})
}

// GetRule godoc
// @Summary Get SLA rule
// @Tags sla-rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id} [get]
func (ctrl *RuleController) GetRule(c *fiber.Ctx) error {
	rule, err := ctrl.Service.GetRule(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": rule})
}

// UpdateRule godoc
// The body is merged onto the stored rule; omitted fields keep their values and maps in the body replace the stored maps.
// @Summary Update SLA rule
// @Tags sla-rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id} [put]
func (ctrl *RuleController) UpdateRule(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rule, err := ctrl.Service.UpdateRule(c.Context(), c.Params("id"), func(r *sla.Rule) error {
		return MergeRuleJSON(r, body)
	})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "SLA rule updated successfully",
		"data":    rule,
	})
}

// DeleteRule godoc
// @Summary Disable SLA rule
// @Tags sla-rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id} [delete]
func (ctrl *RuleController) DeleteRule(c *fiber.Ctx) error {
	if err := ctrl.Service.DisableRule(c.Context(), c.Params("id")); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "SLA rule disabled successfully",
	})
}

// AddHoliday godoc
// @Summary Add holiday to SLA rule
// @Tags sla-rules
// @Produce json
// @Param id path string true "Rule ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id}/holidays/{date} [post]
func (ctrl *RuleController) AddHoliday(c *fiber.Ctx) error {
	rule, err := ctrl.Service.AddHoliday(c.Context(), c.Params("id"), c.Params("date"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": rule})
}

// RemoveHoliday godoc
// @Summary Remove holiday from SLA rule
// @Tags sla-rules
// @Produce json
// @Param id path string true "Rule ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id}/holidays/{date} [delete]
func (ctrl *RuleController) RemoveHoliday(c *fiber.Ctx) error {
	rule, err := ctrl.Service.RemoveHoliday(c.Context(), c.Params("id"), c.Params("date"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": rule})
}

// SetDefault godoc
// @Summary Make SLA rule the default
// @Tags sla-rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/{id}/default [put]
func (ctrl *RuleController) SetDefault(c *fiber.Ctx) error {
	rule, err := ctrl.Service.SetDefault(c.Context(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Default SLA rule updated",
		"data":    rule,
	})
}

// Preview godoc
// @Summary Preview rule resolution
// @Tags sla-rules
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/sla/rules/preview [post]
func (ctrl *RuleController) Preview(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolution, err := ctrl.Service.Preview(c.Context(), req)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"data": resolution})
}
