package notification

import (
	"strconv"

	"go-cats/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type NotificationController struct {
	service NotificationService
}

func NewNotificationController(service NotificationService) *NotificationController {
	return &NotificationController{
		service: service,
	}
}

// List godoc
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/notifications [get]
func (c *NotificationController) List(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "10"), 10, 64)

	notifications, total, err := c.service.GetNotifications(ctx.Context(), user, page, limit)
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"data":  notifications,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUnreadCount godoc
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/notifications/unread-count [get]
func (c *NotificationController) GetUnreadCount(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	count, err := c.service.GetUnreadCount(ctx.Context(), user)
	if err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"count": count})
}

// MarkAsRead godoc
// @Summary Mark notification as read
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/notifications/{id}/read [put]
func (c *NotificationController) MarkAsRead(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := c.service.MarkAsRead(ctx.Context(), ctx.Params("id"), user); err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "success"})
}

// MarkAllAsRead godoc
// @Summary Mark all notifications as read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/notifications/mark-all-read [post]
func (c *NotificationController) MarkAllAsRead(ctx *fiber.Ctx) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := c.service.MarkAllAsRead(ctx.Context(), user); err != nil {
		return middleware.ErrorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "success"})
}
