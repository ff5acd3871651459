package audit

import (
	"strconv"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

// ListLogs godoc
// @Summary List audit logs
// @Tags audit
// @Produce json
// @Param module query string false "Module"
// @Param record_id query string false "Record ID"
// @Param action query string false "Action"
// @Param actor_id query string false "Actor ID"
// @Param case_id query string false "Case ID"
// @Param rule_id query string false "SLA rule ID"
// @Param from query string false "From (RFC3339)"
// @Param to query string false "To (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} common_models.AuditLog
// @Security BearerAuth
// @Router /api/audit-logs [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	filter := LogFilter{
		Module:   c.Query("module"),
		RecordID: c.Query("record_id"),
		Action:   common_models.AuditAction(c.Query("action")),
		ActorID:  c.Query("actor_id"),
		CaseID:   c.Query("case_id"),
		RuleID:   c.Query("rule_id"),
	}

	var err error
	if filter.From, err = parseInstant(c.Query("from")); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	if filter.To, err = parseInstant(c.Query("to")); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return ctrl.list(c, filter)
}

// CaseTrail godoc
// @Summary Audit trail of a case
// @Tags audit
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} common_models.AuditLog
// @Security BearerAuth
// @Router /api/audit-logs/cases/{id} [get]
func (ctrl *AuditController) CaseTrail(c *fiber.Ctx) error {
	return ctrl.list(c, LogFilter{CaseID: c.Params("id")})
}

// RuleTrail godoc
// @Summary Audit trail of an SLA rule
// @Tags audit
// @Produce json
// @Param id path string true "SLA rule ID"
// @Success 200 {array} common_models.AuditLog
// @Security BearerAuth
// @Router /api/audit-logs/rules/{id} [get]
func (ctrl *AuditController) RuleTrail(c *fiber.Ctx) error {
	return ctrl.list(c, LogFilter{RuleID: c.Params("id")})
}

func (ctrl *AuditController) list(c *fiber.Ctx, filter LogFilter) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	logs, err := ctrl.Service.ListLogs(c.Context(), filter, page, limit)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(logs)
}

func parseInstant(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, common_models.Invalid("from and to must be RFC3339 timestamps")
	}
	return &t, nil
}
