package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldserve/ticket-engine/internal/config"
	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/events"
	"github.com/fieldserve/ticket-engine/internal/repository"
	"github.com/fieldserve/ticket-engine/internal/scheduling"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// Engine applies ticket commands: it validates status transitions, tracks
// work sessions, derives billing-queue entries on completion and decides
// which notifications each transition produces. Delivery of those
// notifications is not its concern.
type Engine struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	billing    repository.BillingQueueRepository
	dispatcher events.Dispatcher
	scheduler  scheduling.Scheduler
	logger     *zap.Logger
	rates      config.BillingConfig
	policy     config.EngineConfig
	opsEmail   string
	now        func() time.Time
	locks      *ticketLocks
}

// Dependencies bundles collaborators for the engine.
type Dependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	BillingRepo repository.BillingQueueRepository
	Dispatcher  events.Dispatcher
	Scheduler   scheduling.Scheduler
	Logger      *zap.Logger
	Billing     config.BillingConfig
	Policy      config.EngineConfig
	OpsEmail    string
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New constructs the engine.
func New(deps Dependencies, opts ...Option) *Engine {
	e := &Engine{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		billing:    deps.BillingRepo,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		logger:     deps.Logger,
		rates:      deps.Billing,
		policy:     deps.Policy,
		opsEmail:   deps.OpsEmail,
		now:        time.Now,
		locks:      newTicketLocks(),
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTicketInput describes the creation payload.
type CreateTicketInput struct {
	Title         string
	Description   string
	Status        *domain.TicketStatus
	Priority      domain.TicketPriority
	AssignedTo    *string
	Customer      domain.Customer
	ServiceType   string
	ScheduledDate *time.Time
}

// CreateTicket constructs and stores a new ticket. The workflow stage is
// always awaiting_assignment, even when an assignee is supplied; that
// matches the historical behavior invoicing reports depend on.
func (e *Engine) CreateTicket(ctx context.Context, actorID string, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	status := domain.TicketStatusNew
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		status = *input.Status
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	now := e.now()
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Status:        status,
		WorkflowStage: domain.StageAwaitingAssignment,
		Priority:      priority,
		AssignedTo:    input.AssignedTo,
		Customer:      input.Customer,
		ServiceType:   input.ServiceType,
		ScheduledDate: input.ScheduledDate,
		Comments:      []domain.Comment{},
		WorkSessions:  []domain.WorkSession{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if ticket.ScheduledDate != nil && e.scheduler != nil {
		if err := e.scheduler.CreateEntry(ctx, ticket.ID, ticket.Title, *ticket.ScheduledDate); err != nil {
			e.logger.Warn("calendar entry creation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	e.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Notifications: []events.Notification{{
			RecipientEmail: e.opsEmail,
			Subject:        "New ticket: " + ticket.Title,
			Template:       "ticket_created",
		}},
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Status:   ticket.Status,
		},
	})
	return ticket, nil
}

// TicketPatch is a partial-field update. Nil fields are left untouched.
// WorkStarted and WorkStopped drive the session tracker and compose
// freely with the other fields.
type TicketPatch struct {
	Title         *string
	Description   *string
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	AssignedTo    *string
	Customer      *domain.Customer
	ServiceType   *string
	ScheduledDate *time.Time
	Comment       *string
	WorkStarted   bool
	WorkStartedBy string
	WorkStopped   bool
}

// UpdateTicket merges a patch into a ticket, handling work-session
// bookkeeping, status transitions, billing derivation and notification
// decisions. The ticket mutation always commits before any notification
// side effect.
func (e *Engine) UpdateTicket(ctx context.Context, ticketID, actorID string, patch TicketPatch) (*domain.Ticket, error) {
	unlock := e.locks.lock(ticketID)
	defer unlock()

	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var pending []events.Event

	// Session tracking first so a stop in the same call is timed against
	// the pre-patch state.
	if patch.WorkStarted && !ticket.WorkInProgress() {
		userID := patch.WorkStartedBy
		if userID == "" {
			userID = actorID
		}
		ticket.CurrentWorkSession = &domain.OpenWorkSession{StartTime: now, UserID: userID}
	}
	if patch.WorkStopped && ticket.WorkInProgress() {
		session := closeWorkSession(ticket.CurrentWorkSession, now)
		ticket.WorkSessions = append(ticket.WorkSessions, session)
		ticket.TotalWorkTime += session.DurationMinutes
		ticket.CurrentWorkSession = nil
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title required", nil)
		}
		ticket.Title = title
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	if patch.Customer != nil {
		ticket.Customer = *patch.Customer
	}
	if patch.ServiceType != nil {
		ticket.ServiceType = *patch.ServiceType
	}
	if patch.ScheduledDate != nil {
		ticket.ScheduledDate = patch.ScheduledDate
	}
	if patch.Comment != nil && strings.TrimSpace(*patch.Comment) != "" {
		e.appendComment(ticket, actorID, e.lookupName(ctx, actorID), *patch.Comment, domain.CommentTypeUser)
	}

	if patch.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *patch.AssignedTo) {
		oldAssignee := ticket.AssignedTo
		assignee := *patch.AssignedTo
		ticket.AssignedTo = &assignee

		event := events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.AssignmentChangedPayload{
				OldAssignee: oldAssignee,
				NewAssignee: assignee,
			},
		}
		// Referential integrity of assignedTo is not enforced here; a
		// notification is only decided when the assignee resolves.
		if user, err := e.users.GetByID(ctx, assignee); err == nil {
			event.Notifications = []events.Notification{{
				RecipientEmail: user.Email,
				Subject:        "Ticket assigned to you: " + ticket.Title,
				Template:       "ticket_assigned",
			}}
		}
		pending = append(pending, event)
	}

	if patch.Status != nil && *patch.Status != ticket.Status {
		if !patch.Status.IsValid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *patch.Status})
		}
		oldStatus := ticket.Status
		newStatus := *patch.Status
		if e.policy.StrictTransitions && !transitionAllowed(oldStatus, newStatus) {
			return nil, apperrors.NewInvalidTransition(oldStatus, newStatus)
		}
		ticket.Status = newStatus
		if stage, ok := stageForStatus(newStatus); ok {
			ticket.WorkflowStage = stage
		}

		event := events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.StatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: newStatus,
				Stage:     ticket.WorkflowStage,
			},
		}
		if ticket.AssignedTo != nil {
			if user, err := e.users.GetByID(ctx, *ticket.AssignedTo); err == nil {
				event.Notifications = []events.Notification{{
					RecipientEmail: user.Email,
					Subject:        "Ticket status changed: " + ticket.Title,
					Template:       "ticket_status_changed",
				}}
			}
		}
		pending = append(pending, event)

		if newStatus == domain.TicketStatusCompleted && oldStatus != domain.TicketStatusCompleted {
			item := e.deriveBillingItem(ticket, now)
			// Queue the billing item before committing the status. If the
			// ticket were saved as completed first and the queue insert
			// failed, no retry could ever reach this branch again; an
			// orphaned queue item on the reverse failure is visible via
			// ListByTicket and the retry derives a fresh one.
			if err := e.billing.Add(ctx, item); err != nil {
				return nil, err
			}
			ticket.UpdatedAt = now
			if err := e.tickets.Update(ctx, ticket); err != nil {
				return nil, err
			}
			pending = append(pending, events.Event{
				Type:     events.EventBillingQueued,
				TicketID: ticket.ID,
				ActorID:  actorID,
				Payload: events.BillingQueuedPayload{
					QueueItemID: item.QueueItemID,
					TotalAmount: item.TicketData.TotalAmount,
				},
			})
			e.publishAll(ctx, pending)
			return ticket, nil
		}
	}

	ticket.UpdatedAt = now
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	e.publishAll(ctx, pending)
	return ticket, nil
}

// GetTicket fetches a single ticket.
func (e *Engine) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return e.tickets.GetByID(ctx, ticketID)
}

// ListTickets returns tickets matching the filter.
func (e *Engine) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return e.tickets.List(ctx, filter)
}

// closeWorkSession turns the open session into a closed record. Duration
// is rounded to whole minutes.
func closeWorkSession(open *domain.OpenWorkSession, endedAt time.Time) domain.WorkSession {
	elapsed := endedAt.Sub(open.StartTime)
	minutes := int((elapsed + 30*time.Second) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return domain.WorkSession{
		StartTime:       open.StartTime,
		EndTime:         endedAt,
		DurationMinutes: minutes,
		UserID:          open.UserID,
	}
}

// stageForStatus maps a direct status update onto the workflow stage.
// Terminal-ish statuses keep whatever stage the ticket already carries.
func stageForStatus(status domain.TicketStatus) (domain.WorkflowStage, bool) {
	switch status {
	case domain.TicketStatusNew:
		return domain.StageAwaitingAssignment, true
	case domain.TicketStatusAssigned, domain.TicketStatusInProgress:
		return domain.StageWorkInProgress, true
	case domain.TicketStatusWaitingApproval, domain.TicketStatusParked:
		return domain.StageAwaitingAuthorization, true
	}
	return "", false
}

// allowedTransitions is only consulted when strict transitions are
// enabled; the default policy accepts any pair.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:             {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusAssigned:        {domain.TicketStatusInProgress, domain.TicketStatusWaitingApproval, domain.TicketStatusParked, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress:      {domain.TicketStatusWaitingApproval, domain.TicketStatusParked, domain.TicketStatusResolved, domain.TicketStatusCompleted, domain.TicketStatusClosed},
	domain.TicketStatusWaitingApproval: {domain.TicketStatusAssigned, domain.TicketStatusParked},
	domain.TicketStatusParked:          {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusResolved:        {domain.TicketStatusInProgress, domain.TicketStatusCompleted, domain.TicketStatusClosed},
	domain.TicketStatusCompleted:       {domain.TicketStatusClosed},
	domain.TicketStatusClosed:          {},
}

func transitionAllowed(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (e *Engine) appendComment(ticket *domain.Ticket, authorID, authorName, content string, commentType domain.CommentType) {
	ticket.Comments = append(ticket.Comments, domain.Comment{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    strings.TrimSpace(content),
		Type:       commentType,
		CreatedAt:  e.now(),
	})
}

func (e *Engine) lookupName(ctx context.Context, userID string) string {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.Name
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}

func (e *Engine) publishAll(ctx context.Context, pending []events.Event) {
	for _, event := range pending {
		e.publish(ctx, event)
	}
}

// ticketLocks serializes commands per ticket. The engine is the single
// writer, so a plain mutex per id is enough; entries are never reclaimed.
type ticketLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{m: make(map[string]*sync.Mutex)}
}

func (l *ticketLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.m[id]
	if !ok {
		entry = &sync.Mutex{}
		l.m[id] = entry
	}
	l.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
