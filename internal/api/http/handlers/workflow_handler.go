package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/api/dto"
	"github.com/fieldserve/ticket-engine/internal/auth"
	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/engine"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// WorkflowHandler exposes the hand-off and approval commands.
type WorkflowHandler struct {
	engine *engine.Engine
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(eng *engine.Engine) *WorkflowHandler {
	return &WorkflowHandler{engine: eng}
}

// PassTicket POST /api/tickets/:id/pass.
func (h *WorkflowHandler) PassTicket(c *fiber.Ctx) error {
	if err := requirePrincipal(c); err != nil {
		return err
	}
	var req dto.PassTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.FromUserID == "" || req.ToUserID == "" {
		return apperrors.NewValidationError("from_user_id and to_user_id required", nil)
	}
	ticket, applied, err := h.engine.PassTicket(c.Context(), c.Params("id"), req.FromUserID, req.ToUserID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(workflowResult(ticket, applied))
}

// RequestApproval POST /api/tickets/:id/approval/request.
func (h *WorkflowHandler) RequestApproval(c *fiber.Ctx) error {
	if err := requirePrincipal(c); err != nil {
		return err
	}
	var req dto.RequestApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequesterID == "" {
		return apperrors.NewValidationError("requester_id required", nil)
	}
	ticket, applied, err := h.engine.RequestApproval(c.Context(), c.Params("id"), req.RequesterID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(workflowResult(ticket, applied))
}

// ProcessApproval POST /api/tickets/:id/approval/decision.
func (h *WorkflowHandler) ProcessApproval(c *fiber.Ctx) error {
	if err := requirePrincipal(c); err != nil {
		return err
	}
	var req dto.ProcessApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ApproverID == "" {
		return apperrors.NewValidationError("approver_id required", nil)
	}
	decision := engine.ApprovalDecision(req.Decision)
	ticket, applied, err := h.engine.ProcessApproval(c.Context(), c.Params("id"), req.ApproverID, decision, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(workflowResult(ticket, applied))
}

func requirePrincipal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	return nil
}

func workflowResult(ticket *domain.Ticket, applied bool) fiber.Map {
	result := fiber.Map{"applied": applied}
	if ticket != nil {
		result["data"] = dto.FromTicket(ticket)
	}
	return result
}
