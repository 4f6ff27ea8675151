package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/events"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// ApprovalDecision is the outcome of processApproval.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionDenied   ApprovalDecision = "denied"
)

// The workflow commands return (ticket, applied, err). In the default
// compatibility mode an unresolved ticket or user reference yields
// (nil-or-current, false, nil) without touching the ticket. With
// strict references enabled the same situations return
// REFERENCE_NOT_FOUND; the no-mutation guarantee holds either way.

// PassTicket hands a ticket from one user to another: records a system
// comment, reassigns, forces the assigned status (stage unchanged) and
// notifies the receiver.
func (e *Engine) PassTicket(ctx context.Context, ticketID, fromUserID, toUserID, reason string) (*domain.Ticket, bool, error) {
	unlock := e.locks.lock(ticketID)
	defer unlock()

	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, e.refFailure("ticket", ticketID, err)
	}
	fromUser, err := e.users.GetByID(ctx, fromUserID)
	if err != nil {
		return e.refNoOp(ticket, "user", fromUserID, err)
	}
	toUser, err := e.users.GetByID(ctx, toUserID)
	if err != nil {
		return e.refNoOp(ticket, "user", toUserID, err)
	}

	content := fmt.Sprintf("Ticket passed from %s to %s", fromUser.Name, toUser.Name)
	if reason != "" {
		content += ": " + reason
	}
	e.appendComment(ticket, fromUser.ID, fromUser.Name, content, domain.CommentTypeSystem)

	ticket.AssignedTo = &toUser.ID
	ticket.Status = domain.TicketStatusAssigned
	ticket.UpdatedAt = e.now()
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return nil, false, err
	}

	e.publish(ctx, events.Event{
		Type:     events.EventTicketPassed,
		TicketID: ticket.ID,
		ActorID:  fromUser.ID,
		Notifications: []events.Notification{{
			RecipientEmail: toUser.Email,
			Subject:        "Ticket passed to you: " + ticket.Title,
			Template:       "ticket_passed",
		}},
		Payload: events.TicketPassedPayload{
			FromUserID: fromUser.ID,
			ToUserID:   toUser.ID,
			Reason:     reason,
		},
	})
	return ticket, true, nil
}

// RequestApproval moves the ticket into waiting_approval and notifies
// every admin and manager. Without at least one such user the command is
// a no-op.
func (e *Engine) RequestApproval(ctx context.Context, ticketID, requesterID, reason string) (*domain.Ticket, bool, error) {
	unlock := e.locks.lock(ticketID)
	defer unlock()

	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, e.refFailure("ticket", ticketID, err)
	}
	requester, err := e.users.GetByID(ctx, requesterID)
	if err != nil {
		return e.refNoOp(ticket, "user", requesterID, err)
	}

	approvers, err := e.users.ListByRoles(ctx, domain.UserRoleAdmin, domain.UserRoleManager)
	if err != nil {
		return nil, false, err
	}
	if len(approvers) == 0 {
		if e.policy.StrictReferences {
			return nil, false, apperrors.MapError(domain.ErrNoApprovers)
		}
		e.logger.Warn("approval requested with no approvers available", zap.String("ticket_id", ticketID))
		return ticket, false, nil
	}

	content := fmt.Sprintf("%s requested approval", requester.Name)
	if reason != "" {
		content += ": " + reason
	}
	e.appendComment(ticket, requester.ID, requester.Name, content, domain.CommentTypeSystem)

	ticket.Status = domain.TicketStatusWaitingApproval
	ticket.WorkflowStage = domain.StageAwaitingAuthorization
	ticket.UpdatedAt = e.now()
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return nil, false, err
	}

	notifications := make([]events.Notification, 0, len(approvers))
	approverIDs := make([]string, 0, len(approvers))
	for _, approver := range approvers {
		notifications = append(notifications, events.Notification{
			RecipientEmail: approver.Email,
			Subject:        "Approval requested: " + ticket.Title,
			Template:       "approval_requested",
		})
		approverIDs = append(approverIDs, approver.ID)
	}
	e.publish(ctx, events.Event{
		Type:          events.EventApprovalRequested,
		TicketID:      ticket.ID,
		ActorID:       requester.ID,
		Notifications: notifications,
		Payload: events.ApprovalRequestedPayload{
			RequesterID: requester.ID,
			ApproverIDs: approverIDs,
			Reason:      reason,
		},
	})
	return ticket, true, nil
}

// ProcessApproval records an approve/deny decision: approved tickets go
// back to assigned (work may continue), denied ones are parked. The
// current assignee, when there is one, is notified of the outcome.
func (e *Engine) ProcessApproval(ctx context.Context, ticketID, approverID string, decision ApprovalDecision, reason string) (*domain.Ticket, bool, error) {
	if decision != DecisionApproved && decision != DecisionDenied {
		return nil, false, apperrors.NewValidationError("decision must be approved or denied", map[string]any{"decision": decision})
	}

	unlock := e.locks.lock(ticketID)
	defer unlock()

	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, e.refFailure("ticket", ticketID, err)
	}
	approver, err := e.users.GetByID(ctx, approverID)
	if err != nil {
		return e.refNoOp(ticket, "user", approverID, err)
	}
	// A user outside the approver roles is treated like an unresolved
	// approver reference.
	if !approver.CanApprove() {
		if e.policy.StrictReferences {
			return nil, false, apperrors.NewForbidden("user cannot decide approvals")
		}
		e.logger.Warn("approval decision by non-approver ignored",
			zap.String("ticket_id", ticketID), zap.String("user_id", approverID))
		return ticket, false, nil
	}

	approved := decision == DecisionApproved
	content := fmt.Sprintf("Approval %s by %s", decision, approver.Name)
	if reason != "" {
		content += ": " + reason
	}
	e.appendComment(ticket, approver.ID, approver.Name, content, domain.CommentTypeSystem)

	if approved {
		ticket.Status = domain.TicketStatusAssigned
		ticket.WorkflowStage = domain.StageWorkInProgress
	} else {
		ticket.Status = domain.TicketStatusParked
		ticket.WorkflowStage = domain.StageAwaitingAuthorization
	}
	ticket.UpdatedAt = e.now()
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return nil, false, err
	}

	event := events.Event{
		Type:     events.EventApprovalDecided,
		TicketID: ticket.ID,
		ActorID:  approver.ID,
		Payload: events.ApprovalDecidedPayload{
			ApproverID: approver.ID,
			Approved:   approved,
			Reason:     reason,
		},
	}
	if ticket.AssignedTo != nil {
		if assignee, err := e.users.GetByID(ctx, *ticket.AssignedTo); err == nil {
			template := "approval_denied"
			if approved {
				template = "approval_approved"
			}
			event.Notifications = []events.Notification{{
				RecipientEmail: assignee.Email,
				Subject:        fmt.Sprintf("Approval %s: %s", decision, ticket.Title),
				Template:       template,
			}}
		}
	}
	e.publish(ctx, event)
	return ticket, true, nil
}

// refFailure handles an unresolved ticket reference: strict mode surfaces
// it, compatibility mode swallows it. Infrastructure errors always
// propagate.
func (e *Engine) refFailure(kind, id string, err error) error {
	if !isResolutionFailure(err) {
		return err
	}
	if e.policy.StrictReferences {
		return apperrors.NewReferenceNotFound(kind, id)
	}
	e.logger.Debug("workflow command no-op on unresolved reference",
		zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	return nil
}

// refNoOp handles an unresolved user reference when the ticket itself
// resolved: compatibility mode returns the ticket untouched.
func (e *Engine) refNoOp(ticket *domain.Ticket, kind, id string, err error) (*domain.Ticket, bool, error) {
	if !isResolutionFailure(err) {
		return nil, false, err
	}
	if e.policy.StrictReferences {
		return nil, false, apperrors.NewReferenceNotFound(kind, id)
	}
	e.logger.Debug("workflow command no-op on unresolved reference",
		zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	return ticket, false, nil
}

func isResolutionFailure(err error) bool {
	return errors.Is(err, domain.ErrTicketNotFound) || errors.Is(err, domain.ErrUserNotFound)
}
