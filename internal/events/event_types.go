package events

import (
	"time"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketPassed        EventType = "ticket_passed"
	EventApprovalRequested   EventType = "approval_requested"
	EventApprovalDecided     EventType = "approval_decided"
	EventBillingQueued       EventType = "billing_queued"
)

// Notification is a decision that a message should be sent: recipient,
// subject template and the ticket it concerns. Delivery is the notify
// package's concern.
type Notification struct {
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Template       string `json:"template"`
}

// Event represents a domain event emitted by the engine.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	TicketID      string         `json:"ticket_id"`
	ActorID       string         `json:"actor_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Notifications []Notification `json:"notifications,omitempty"`
	Payload       interface{}    `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Status   domain.TicketStatus   `json:"status"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus  `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	Stage     domain.WorkflowStage `json:"workflow_stage"`
}

// AssignmentChangedPayload payload.
type AssignmentChangedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee string  `json:"new_assignee"`
}

// TicketPassedPayload payload.
type TicketPassedPayload struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Reason     string `json:"reason,omitempty"`
}

// ApprovalRequestedPayload payload.
type ApprovalRequestedPayload struct {
	RequesterID string   `json:"requester_id"`
	ApproverIDs []string `json:"approver_ids"`
	Reason      string   `json:"reason,omitempty"`
}

// ApprovalDecidedPayload payload.
type ApprovalDecidedPayload struct {
	ApproverID string `json:"approver_id"`
	Approved   bool   `json:"approved"`
	Reason     string `json:"reason,omitempty"`
}

// BillingQueuedPayload payload.
type BillingQueuedPayload struct {
	QueueItemID string  `json:"queue_item_id"`
	TotalAmount float64 `json:"total_amount"`
}
