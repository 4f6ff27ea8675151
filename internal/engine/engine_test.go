package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/fieldserve/ticket-engine/internal/config"
	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/engine"
	"github.com/fieldserve/ticket-engine/internal/events"
	"github.com/fieldserve/ticket-engine/internal/repository"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

// flakyBillingQueue fails the first N Add calls, then delegates.
type flakyBillingQueue struct {
	repository.BillingQueueRepository
	failures int
}

func (q *flakyBillingQueue) Add(ctx context.Context, item *domain.BillingQueueItem) error {
	if q.failures > 0 {
		q.failures--
		return errors.New("billing store unavailable")
	}
	return q.BillingQueueRepository.Add(ctx, item)
}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// EngineTestSuite exercises ticket creation and updates against the
// in-memory repositories.
type EngineTestSuite struct {
	suite.Suite
	ctx        context.Context
	tickets    repository.TicketRepository
	users      repository.UserRepository
	billing    repository.BillingQueueRepository
	dispatcher *recordingDispatcher
	engine     *engine.Engine
	now        time.Time
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.tickets = repository.NewMemoryTicketRepository()
	s.users = repository.NewMemoryUserRepository()
	s.billing = repository.NewMemoryBillingQueueRepository()
	s.dispatcher = &recordingDispatcher{}
	s.now = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	s.engine = s.newEngine(config.EngineConfig{})
}

func (s *EngineTestSuite) newEngine(policy config.EngineConfig) *engine.Engine {
	return engine.New(engine.Dependencies{
		TicketRepo:  s.tickets,
		UserRepo:    s.users,
		BillingRepo: s.billing,
		Dispatcher:  s.dispatcher,
		Logger:      zap.NewNop(),
		Billing: config.BillingConfig{
			HourlyRate:     75,
			TaxRate:        0.20,
			DefaultCountry: "Netherlands",
		},
		Policy:   policy,
		OpsEmail: "ops@example.com",
	}, engine.WithClock(func() time.Time { return s.now }))
}

func (s *EngineTestSuite) seedUser(id, name, email string, role domain.UserRole) *domain.User {
	user := &domain.User{ID: id, Name: name, Email: email, Role: role}
	s.Require().NoError(s.users.Create(s.ctx, user))
	return user
}

func (s *EngineTestSuite) createTicket(input engine.CreateTicketInput) *domain.Ticket {
	ticket, err := s.engine.CreateTicket(s.ctx, "actor-1", input)
	s.Require().NoError(err)
	return ticket
}

func (s *EngineTestSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *EngineTestSuite) TestCreateTicketDefaults() {
	assignee := "tech-1"
	ticket := s.createTicket(engine.CreateTicketInput{
		Title:      "  Replace boiler valve  ",
		AssignedTo: &assignee,
	})

	s.Equal("Replace boiler valve", ticket.Title)
	s.Equal(domain.TicketStatusNew, ticket.Status)
	s.Equal(domain.TicketPriorityMedium, ticket.Priority)
	// The stage stays awaiting_assignment on create regardless of an
	// assignee being supplied up front.
	s.Equal(domain.StageAwaitingAssignment, ticket.WorkflowStage)
	s.Equal(0, ticket.TotalWorkTime)
	s.Nil(ticket.CurrentWorkSession)
	s.NotEmpty(ticket.ID)

	created := s.dispatcher.byType(events.EventTicketCreated)
	s.Require().Len(created, 1)
	s.Require().Len(created[0].Notifications, 1)
	s.Equal("ops@example.com", created[0].Notifications[0].RecipientEmail)
}

func (s *EngineTestSuite) TestCreateTicketRequiresTitle() {
	_, err := s.engine.CreateTicket(s.ctx, "actor-1", engine.CreateTicketInput{Title: "   "})
	s.Require().Error(err)
	s.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func (s *EngineTestSuite) TestCreateTicketRejectsUnknownStatus() {
	bogus := domain.TicketStatus("escalated")
	_, err := s.engine.CreateTicket(s.ctx, "actor-1", engine.CreateTicketInput{
		Title:  "Broken heater",
		Status: &bogus,
	})
	s.Require().Error(err)
	s.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func (s *EngineTestSuite) TestWorkSessionRoundingAndAccumulation() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Annual maintenance"})

	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	s.Require().NotNil(updated.CurrentWorkSession)
	s.Equal("tech-1", updated.CurrentWorkSession.UserID)

	// 44m29s rounds down to 44.
	s.advance(44*time.Minute + 29*time.Second)
	updated, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStopped: true})
	s.Require().NoError(err)
	s.Nil(updated.CurrentWorkSession)
	s.Require().Len(updated.WorkSessions, 1)
	s.Equal(44, updated.WorkSessions[0].DurationMinutes)
	s.Equal(44, updated.TotalWorkTime)

	// 45m31s rounds up to 46; totals accumulate.
	_, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	s.advance(45*time.Minute + 31*time.Second)
	updated, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStopped: true})
	s.Require().NoError(err)
	s.Require().Len(updated.WorkSessions, 2)
	s.Equal(46, updated.WorkSessions[1].DurationMinutes)
	s.Equal(90, updated.TotalWorkTime)
}

func (s *EngineTestSuite) TestWorkStartIgnoredWhileSessionOpen() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Inspect wiring"})

	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	started := s.now

	s.advance(10 * time.Minute)
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-2", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	s.Require().NotNil(updated.CurrentWorkSession)
	s.Equal(started, updated.CurrentWorkSession.StartTime)
	s.Equal("tech-1", updated.CurrentWorkSession.UserID)
}

func (s *EngineTestSuite) TestWorkStopWithoutSessionIsNoOp() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Inspect wiring"})

	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStopped: true})
	s.Require().NoError(err)
	s.Empty(updated.WorkSessions)
	s.Equal(0, updated.TotalWorkTime)
}

func (s *EngineTestSuite) TestCompletionDerivesBillingOnce() {
	ticket := s.createTicket(engine.CreateTicketInput{
		Title:       "Install thermostat",
		ServiceType: "installation",
		Customer: domain.Customer{
			Name:  "Acme BV",
			Email: "billing@acme.example",
		},
	})

	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	s.advance(2 * time.Hour)
	_, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStopped: true})
	s.Require().NoError(err)

	completed := domain.TicketStatusCompleted
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusCompleted, updated.Status)

	items, err := s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)

	data := items[0].TicketData
	s.Equal(120, data.TotalMinutes)
	s.Equal("2h 0m", data.TimeSpent)
	s.InDelta(150.0, data.LaborCost, 1e-9)
	s.InDelta(150.0, data.TotalBeforeTax, 1e-9)
	s.InDelta(30.0, data.TaxAmount, 1e-9)
	s.InDelta(180.0, data.TotalAmount, 1e-9)
	s.Equal("Acme BV", data.CustomerName)
	s.Equal("billing@acme.example", data.CustomerEmail)

	// Re-sending the same status does not queue again.
	_, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().NoError(err)
	items, err = s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Len(items, 1)

	queued := s.dispatcher.byType(events.EventBillingQueued)
	s.Len(queued, 1)
}

func (s *EngineTestSuite) TestCompletionRemainsRetriableWhenBillingStoreFails() {
	flaky := &flakyBillingQueue{BillingQueueRepository: s.billing, failures: 1}
	s.engine = engine.New(engine.Dependencies{
		TicketRepo:  s.tickets,
		UserRepo:    s.users,
		BillingRepo: flaky,
		Dispatcher:  s.dispatcher,
		Logger:      zap.NewNop(),
		Billing:     config.BillingConfig{HourlyRate: 75, TaxRate: 0.20, DefaultCountry: "Netherlands"},
		OpsEmail:    "ops@example.com",
	}, engine.WithClock(func() time.Time { return s.now }))

	ticket := s.createTicket(engine.CreateTicketInput{Title: "Flaky store"})

	completed := domain.TicketStatusCompleted
	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().Error(err)

	// The status change must not have committed, so the completion
	// transition can be retried once the store recovers.
	stored, err := s.tickets.GetByID(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusNew, stored.Status)
	items, err := s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Empty(items)
	s.Empty(s.dispatcher.byType(events.EventBillingQueued))

	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusCompleted, updated.Status)
	items, err = s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Len(items, 1)
	s.Len(s.dispatcher.byType(events.EventBillingQueued), 1)
}

func (s *EngineTestSuite) TestBillingSnapshotFallbacks() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Emergency callout"})

	completed := domain.TicketStatusCompleted
	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().NoError(err)

	items, err := s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)

	data := items[0].TicketData
	s.Equal("Unknown Customer", data.CustomerName)
	s.Equal("unknown@example.com", data.CustomerEmail)
	s.Equal("N/A", data.CustomerPhone)
	s.Equal("N/A", data.CustomerAddress)
	s.Equal("N/A", data.CustomerCity)
	s.Equal("Netherlands", data.CustomerCountry)
	s.Equal(0, data.TotalMinutes)
	s.Equal("0h 0m", data.TimeSpent)
	s.InDelta(0.0, data.TotalAmount, 1e-9)
}

func (s *EngineTestSuite) TestTimeSpentUsesWholeHoursAndMinutes() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Boiler descaling"})

	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStarted: true})
	s.Require().NoError(err)
	s.advance(90 * time.Minute)
	_, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{WorkStopped: true})
	s.Require().NoError(err)

	completed := domain.TicketStatusCompleted
	_, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().NoError(err)

	items, err := s.billing.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("1h 30m", items[0].TicketData.TimeSpent)
	s.InDelta(112.5, items[0].TicketData.LaborCost, 1e-9)
}

func (s *EngineTestSuite) TestPermissiveTransitionsAcceptAnyPair() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Odd jump"})

	closed := domain.TicketStatusClosed
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &closed})
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusClosed, updated.Status)

	// Even leaving a terminal status is accepted in the default mode.
	inProgress := domain.TicketStatusInProgress
	updated, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &inProgress})
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusInProgress, updated.Status)
}

func (s *EngineTestSuite) TestStrictTransitionsRejectUnknownPair() {
	strict := s.newEngine(config.EngineConfig{StrictTransitions: true})

	ticket, err := strict.CreateTicket(s.ctx, "actor-1", engine.CreateTicketInput{Title: "Strict path"})
	s.Require().NoError(err)

	completed := domain.TicketStatusCompleted
	_, err = strict.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &completed})
	s.Require().Error(err)
	s.Equal("INVALID_TRANSITION", apperrors.ToDomainError(err).Code)

	// An allowed edge still works.
	assigned := domain.TicketStatusAssigned
	updated, err := strict.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &assigned})
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusAssigned, updated.Status)
}

func (s *EngineTestSuite) TestStatusChangeMapsWorkflowStage() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Stage mapping"})

	inProgress := domain.TicketStatusInProgress
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &inProgress})
	s.Require().NoError(err)
	s.Equal(domain.StageWorkInProgress, updated.WorkflowStage)

	parked := domain.TicketStatusParked
	updated, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &parked})
	s.Require().NoError(err)
	s.Equal(domain.StageAwaitingAuthorization, updated.WorkflowStage)

	// Terminal statuses keep the stage the ticket already carries.
	closed := domain.TicketStatusClosed
	updated, err = s.engine.UpdateTicket(s.ctx, ticket.ID, "tech-1", engine.TicketPatch{Status: &closed})
	s.Require().NoError(err)
	s.Equal(domain.StageAwaitingAuthorization, updated.WorkflowStage)
}

func (s *EngineTestSuite) TestAssignmentNotifiesResolvedUser() {
	tech := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Assign me"})

	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "manager-1", engine.TicketPatch{AssignedTo: &tech.ID})
	s.Require().NoError(err)
	s.Require().NotNil(updated.AssignedTo)
	s.Equal(tech.ID, *updated.AssignedTo)

	assigned := s.dispatcher.byType(events.EventTicketAssigned)
	s.Require().Len(assigned, 1)
	s.Require().Len(assigned[0].Notifications, 1)
	s.Equal("jamie@example.com", assigned[0].Notifications[0].RecipientEmail)
}

func (s *EngineTestSuite) TestAssignmentToUnknownUserStillApplies() {
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Ghost assignee"})

	ghost := "nobody-1"
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "manager-1", engine.TicketPatch{AssignedTo: &ghost})
	s.Require().NoError(err)
	s.Require().NotNil(updated.AssignedTo)
	s.Equal(ghost, *updated.AssignedTo)

	assigned := s.dispatcher.byType(events.EventTicketAssigned)
	s.Require().Len(assigned, 1)
	s.Empty(assigned[0].Notifications)
}

func (s *EngineTestSuite) TestCommentAppendsWithAuthorName() {
	author := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.createTicket(engine.CreateTicketInput{Title: "Commented"})

	comment := "Customer rescheduled to Thursday"
	updated, err := s.engine.UpdateTicket(s.ctx, ticket.ID, author.ID, engine.TicketPatch{Comment: &comment})
	s.Require().NoError(err)
	s.Require().Len(updated.Comments, 1)
	s.Equal(comment, updated.Comments[0].Content)
	s.Equal("Jamie Fox", updated.Comments[0].AuthorName)
	s.Equal(domain.CommentTypeUser, updated.Comments[0].Type)
}

func (s *EngineTestSuite) TestUpdateUnknownTicketReturnsNotFound() {
	_, err := s.engine.UpdateTicket(s.ctx, "missing", "tech-1", engine.TicketPatch{})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrTicketNotFound)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
