package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusAssigned        TicketStatus = "assigned"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingApproval TicketStatus = "waiting_approval"
	TicketStatusParked          TicketStatus = "parked"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusCompleted       TicketStatus = "completed"
	TicketStatusClosed          TicketStatus = "closed"
)

// IsValid reports whether the status is a known lifecycle state.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusWaitingApproval, TicketStatusParked, TicketStatusResolved,
		TicketStatusCompleted, TicketStatusClosed:
		return true
	}
	return false
}

// WorkflowStage is a secondary phase label correlated with, but not
// identical to, the ticket status.
type WorkflowStage string

const (
	StageAwaitingAssignment    WorkflowStage = "awaiting_assignment"
	StageAwaitingAuthorization WorkflowStage = "awaiting_authorization"
	StageWorkInProgress        WorkflowStage = "work_in_progress"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// IsValid reports whether the priority is a known urgency level.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// CommentType distinguishes user remarks from engine-generated audit entries.
type CommentType string

const (
	CommentTypeUser   CommentType = "user"
	CommentTypeSystem CommentType = "system"
)

// Comment is an append-only ticket thread entry.
type Comment struct {
	ID         string      `json:"id"`
	AuthorID   string      `json:"author_id"`
	AuthorName string      `json:"author_name"`
	Content    string      `json:"content"`
	Type       CommentType `json:"type"`
	CreatedAt  time.Time   `json:"created_at"`
}

// WorkSession is a closed timed interval of tracked work.
type WorkSession struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	UserID          string    `json:"user_id"`
}

// OpenWorkSession marks work currently being timed. A ticket holds at most one.
type OpenWorkSession struct {
	StartTime time.Time `json:"start_time"`
	UserID    string    `json:"user_id"`
}

// Customer identifies who the work is billed to. Captured on the ticket
// and snapshotted into the billing queue at completion.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Ticket is the aggregate for a unit of requested field-service work.
type Ticket struct {
	ID                 string
	Title              string
	Description        string
	Status             TicketStatus
	WorkflowStage      WorkflowStage
	Priority           TicketPriority
	AssignedTo         *string
	Customer           Customer
	ServiceType        string
	ScheduledDate      *time.Time
	Comments           []Comment
	WorkSessions       []WorkSession
	CurrentWorkSession *OpenWorkSession
	TotalWorkTime      int // accumulated minutes across closed sessions
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WorkInProgress reports whether a session is currently open, independent
// of the status field.
func (t *Ticket) WorkInProgress() bool {
	return t.CurrentWorkSession != nil
}
