package dto

import (
	"time"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        *domain.TicketStatus  `json:"status,omitempty"`
	Priority      domain.TicketPriority `json:"priority"`
	AssignedTo    *string               `json:"assigned_to,omitempty"`
	Customer      domain.Customer       `json:"customer"`
	ServiceType   string                `json:"service_type"`
	ScheduledDate *time.Time            `json:"scheduled_date,omitempty"`
}

// UpdateTicketRequest is the partial-field patch. work_started and
// work_stopped drive the session tracker.
type UpdateTicketRequest struct {
	Title         *string                `json:"title,omitempty"`
	Description   *string                `json:"description,omitempty"`
	Status        *domain.TicketStatus   `json:"status,omitempty"`
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	AssignedTo    *string                `json:"assigned_to,omitempty"`
	Customer      *domain.Customer       `json:"customer,omitempty"`
	ServiceType   *string                `json:"service_type,omitempty"`
	ScheduledDate *time.Time             `json:"scheduled_date,omitempty"`
	Comment       *string                `json:"comment,omitempty"`
	WorkStarted   bool                   `json:"work_started,omitempty"`
	WorkStartedBy string                 `json:"work_started_by,omitempty"`
	WorkStopped   bool                   `json:"work_stopped,omitempty"`
}

// PassTicketRequest payload.
type PassTicketRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Reason     string `json:"reason,omitempty"`
}

// RequestApprovalRequest payload.
type RequestApprovalRequest struct {
	RequesterID string `json:"requester_id"`
	Reason      string `json:"reason,omitempty"`
}

// ProcessApprovalRequest payload.
type ProcessApprovalRequest struct {
	ApproverID string `json:"approver_id"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                 string                  `json:"id"`
	Title              string                  `json:"title"`
	Description        string                  `json:"description"`
	Status             domain.TicketStatus     `json:"status"`
	WorkflowStage      domain.WorkflowStage    `json:"workflow_stage"`
	Priority           domain.TicketPriority   `json:"priority"`
	AssignedTo         *string                 `json:"assigned_to,omitempty"`
	Customer           domain.Customer         `json:"customer"`
	ServiceType        string                  `json:"service_type"`
	ScheduledDate      *time.Time              `json:"scheduled_date,omitempty"`
	Comments           []domain.Comment        `json:"comments"`
	WorkSessions       []domain.WorkSession    `json:"work_sessions"`
	CurrentWorkSession *domain.OpenWorkSession `json:"current_work_session,omitempty"`
	TotalWorkTime      int                     `json:"total_work_time"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// FromTicket maps the domain aggregate onto the response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             t.Status,
		WorkflowStage:      t.WorkflowStage,
		Priority:           t.Priority,
		AssignedTo:         t.AssignedTo,
		Customer:           t.Customer,
		ServiceType:        t.ServiceType,
		ScheduledDate:      t.ScheduledDate,
		Comments:           t.Comments,
		WorkSessions:       t.WorkSessions,
		CurrentWorkSession: t.CurrentWorkSession,
		TotalWorkTime:      t.TotalWorkTime,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
