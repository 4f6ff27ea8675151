package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/repository"
)

// BillingHandler exposes the invoicing feed.
type BillingHandler struct {
	queue repository.BillingQueueRepository
}

// NewBillingHandler constructs handler.
func NewBillingHandler(queue repository.BillingQueueRepository) *BillingHandler {
	return &BillingHandler{queue: queue}
}

// ListQueue GET /api/billing/queue.
func (h *BillingHandler) ListQueue(c *fiber.Ctx) error {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	if ticketID := c.Query("ticket_id"); ticketID != "" {
		items, err := h.queue.ListByTicket(c.Context(), ticketID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": items})
	}

	items, err := h.queue.List(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}
