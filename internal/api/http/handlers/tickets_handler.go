package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/api/dto"
	"github.com/fieldserve/ticket-engine/internal/auth"
	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/engine"
	"github.com/fieldserve/ticket-engine/internal/repository"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// TicketsHandler manages ticket CRUD endpoints.
type TicketsHandler struct {
	engine *engine.Engine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(eng *engine.Engine) *TicketsHandler {
	return &TicketsHandler{engine: eng}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := engine.CreateTicketInput{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedTo:    req.AssignedTo,
		Customer:      req.Customer,
		ServiceType:   req.ServiceType,
		ScheduledDate: req.ScheduledDate,
	}
	ticket, err := h.engine.CreateTicket(c.Context(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.engine.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.engine.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := engine.TicketPatch{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedTo:    req.AssignedTo,
		Customer:      req.Customer,
		ServiceType:   req.ServiceType,
		ScheduledDate: req.ScheduledDate,
		Comment:       req.Comment,
		WorkStarted:   req.WorkStarted,
		WorkStartedBy: req.WorkStartedBy,
		WorkStopped:   req.WorkStopped,
	}
	ticket, err := h.engine.UpdateTicket(c.Context(), c.Params("id"), principal.User.ID, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{Limit: 50}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if status.IsValid() {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			priority := domain.TicketPriority(strings.TrimSpace(part))
			if priority.IsValid() {
				filter.Priorities = append(filter.Priorities, priority)
			}
		}
	}
	if raw := strings.TrimSpace(c.Query("assigned_to")); raw != "" {
		filter.AssignedTo = &raw
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 200 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}
