package middleware

import (
	"errors"

	common_models "go-cats/internal/common/models"
	"go-cats/pkg/sla"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps service errors onto HTTP status codes
func StatusFor(err error) int {
	var validation *common_models.ValidationError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.Is(err, common_models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, sla.ErrVersionConflict), errors.Is(err, common_models.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, sla.ErrNoApplicableRule), sla.IsConfigurationError(err), errors.Is(err, sla.ErrInvalidCaseState):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse writes err with the status StatusFor picks
func ErrorResponse(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
