package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/notify"
)

// NotificationsHandler exposes the delivery log.
type NotificationsHandler struct {
	notifier *notify.Service
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifier *notify.Service) *NotificationsHandler {
	return &NotificationsHandler{notifier: notifier}
}

// ListDeliveries GET /api/notifications/log.
func (h *NotificationsHandler) ListDeliveries(c *fiber.Ctx) error {
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	records, err := h.notifier.ListDeliveries(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": records})
}
