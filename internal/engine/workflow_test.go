package engine_test

import (
	"context"
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

// WorkflowTestSuite exercises the pass and approval commands.
type WorkflowTestSuite struct {
	suite.Suite
	ctx        context.Context
	tickets    repository.TicketRepository
	users      repository.UserRepository
	billing    repository.BillingQueueRepository
	dispatcher *recordingDispatcher
	engine     *engine.Engine
	now        time.Time
}

func (s *WorkflowTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.tickets = repository.NewMemoryTicketRepository()
	s.users = repository.NewMemoryUserRepository()
	s.billing = repository.NewMemoryBillingQueueRepository()
	s.dispatcher = &recordingDispatcher{}
	s.now = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	s.engine = s.newEngine(config.EngineConfig{})
}

func (s *WorkflowTestSuite) newEngine(policy config.EngineConfig) *engine.Engine {
	return engine.New(engine.Dependencies{
		TicketRepo:  s.tickets,
		UserRepo:    s.users,
		BillingRepo: s.billing,
		Dispatcher:  s.dispatcher,
		Logger:      zap.NewNop(),
		Billing:     config.BillingConfig{HourlyRate: 75, TaxRate: 0.20, DefaultCountry: "Netherlands"},
		Policy:      policy,
		OpsEmail:    "ops@example.com",
	}, engine.WithClock(func() time.Time { return s.now }))
}

func (s *WorkflowTestSuite) seedUser(id, name, email string, role domain.UserRole) *domain.User {
	user := &domain.User{ID: id, Name: name, Email: email, Role: role}
	s.Require().NoError(s.users.Create(s.ctx, user))
	return user
}

func (s *WorkflowTestSuite) seedTicket(title string) *domain.Ticket {
	ticket, err := s.engine.CreateTicket(s.ctx, "actor-1", engine.CreateTicketInput{Title: title})
	s.Require().NoError(err)
	return ticket
}

func (s *WorkflowTestSuite) TestPassTicketReassignsAndNotifies() {
	from := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	to := s.seedUser("tech-2", "Robin Vos", "robin@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Leaking radiator")

	updated, applied, err := s.engine.PassTicket(s.ctx, ticket.ID, from.ID, to.ID, "going on leave")
	s.Require().NoError(err)
	s.True(applied)
	s.Require().NotNil(updated.AssignedTo)
	s.Equal(to.ID, *updated.AssignedTo)
	s.Equal(domain.TicketStatusAssigned, updated.Status)

	s.Require().Len(updated.Comments, 1)
	s.Equal("Ticket passed from Jamie Fox to Robin Vos: going on leave", updated.Comments[0].Content)
	s.Equal(domain.CommentTypeSystem, updated.Comments[0].Type)

	passed := s.dispatcher.byType(events.EventTicketPassed)
	s.Require().Len(passed, 1)
	s.Require().Len(passed[0].Notifications, 1)
	s.Equal("robin@example.com", passed[0].Notifications[0].RecipientEmail)
}

func (s *WorkflowTestSuite) TestPassTicketWithoutReasonOmitsSuffix() {
	from := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	to := s.seedUser("tech-2", "Robin Vos", "robin@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Leaking radiator")

	updated, applied, err := s.engine.PassTicket(s.ctx, ticket.ID, from.ID, to.ID, "")
	s.Require().NoError(err)
	s.True(applied)
	s.Require().Len(updated.Comments, 1)
	s.Equal("Ticket passed from Jamie Fox to Robin Vos", updated.Comments[0].Content)
}

func (s *WorkflowTestSuite) TestPassTicketUnknownUserIsSilentNoOp() {
	from := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Leaking radiator")

	returned, applied, err := s.engine.PassTicket(s.ctx, ticket.ID, from.ID, "ghost", "")
	s.Require().NoError(err)
	s.False(applied)
	s.Require().NotNil(returned)
	s.Nil(returned.AssignedTo)
	s.Empty(returned.Comments)

	stored, err := s.tickets.GetByID(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusNew, stored.Status)
	s.Empty(s.dispatcher.byType(events.EventTicketPassed))
}

func (s *WorkflowTestSuite) TestPassTicketUnknownTicketIsSilentNoOp() {
	from := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)

	returned, applied, err := s.engine.PassTicket(s.ctx, "missing", from.ID, "tech-2", "")
	s.Require().NoError(err)
	s.False(applied)
	s.Nil(returned)
}

func (s *WorkflowTestSuite) TestPassTicketStrictReferences() {
	strict := s.newEngine(config.EngineConfig{StrictReferences: true})
	from := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Leaking radiator")

	_, applied, err := strict.PassTicket(s.ctx, ticket.ID, from.ID, "ghost", "")
	s.Require().Error(err)
	s.False(applied)
	s.Equal("REFERENCE_NOT_FOUND", apperrors.ToDomainError(err).Code)

	_, _, err = strict.PassTicket(s.ctx, "missing", from.ID, from.ID, "")
	s.Require().Error(err)
	s.Equal("REFERENCE_NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func (s *WorkflowTestSuite) TestRequestApprovalFansOutToApprovers() {
	requester := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	s.seedUser("mgr-1", "Alex Brand", "alex@example.com", domain.UserRoleManager)
	s.seedUser("adm-1", "Sam Root", "sam@example.com", domain.UserRoleAdmin)
	ticket := s.seedTicket("Expensive part needed")

	updated, applied, err := s.engine.RequestApproval(s.ctx, ticket.ID, requester.ID, "part costs 600")
	s.Require().NoError(err)
	s.True(applied)
	s.Equal(domain.TicketStatusWaitingApproval, updated.Status)
	s.Equal(domain.StageAwaitingAuthorization, updated.WorkflowStage)

	s.Require().Len(updated.Comments, 1)
	s.Equal("Jamie Fox requested approval: part costs 600", updated.Comments[0].Content)

	requested := s.dispatcher.byType(events.EventApprovalRequested)
	s.Require().Len(requested, 1)
	s.Len(requested[0].Notifications, 2)

	recipients := map[string]bool{}
	for _, n := range requested[0].Notifications {
		recipients[n.RecipientEmail] = true
	}
	s.True(recipients["alex@example.com"])
	s.True(recipients["sam@example.com"])
	s.False(recipients["jamie@example.com"])
}

func (s *WorkflowTestSuite) TestRequestApprovalWithoutApproversIsNoOp() {
	requester := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Expensive part needed")

	updated, applied, err := s.engine.RequestApproval(s.ctx, ticket.ID, requester.ID, "")
	s.Require().NoError(err)
	s.False(applied)
	s.Equal(domain.TicketStatusNew, updated.Status)
	s.Empty(s.dispatcher.byType(events.EventApprovalRequested))
}

func (s *WorkflowTestSuite) TestRequestApprovalWithoutApproversStrict() {
	strict := s.newEngine(config.EngineConfig{StrictReferences: true})
	requester := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Expensive part needed")

	_, applied, err := strict.RequestApproval(s.ctx, ticket.ID, requester.ID, "")
	s.Require().Error(err)
	s.False(applied)
	s.ErrorIs(err, domain.ErrNoApprovers)
}

func (s *WorkflowTestSuite) TestProcessApprovalApproved() {
	approver := s.seedUser("mgr-1", "Alex Brand", "alex@example.com", domain.UserRoleManager)
	assignee := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Expensive part needed")

	_, err := s.engine.UpdateTicket(s.ctx, ticket.ID, "mgr-1", engine.TicketPatch{AssignedTo: &assignee.ID})
	s.Require().NoError(err)

	updated, applied, err := s.engine.ProcessApproval(s.ctx, ticket.ID, approver.ID, engine.DecisionApproved, "go ahead")
	s.Require().NoError(err)
	s.True(applied)
	s.Equal(domain.TicketStatusAssigned, updated.Status)
	s.Equal(domain.StageWorkInProgress, updated.WorkflowStage)

	s.Require().NotEmpty(updated.Comments)
	last := updated.Comments[len(updated.Comments)-1]
	s.Equal("Approval approved by Alex Brand: go ahead", last.Content)
	s.Equal(domain.CommentTypeSystem, last.Type)

	decided := s.dispatcher.byType(events.EventApprovalDecided)
	s.Require().Len(decided, 1)
	s.Require().Len(decided[0].Notifications, 1)
	s.Equal("jamie@example.com", decided[0].Notifications[0].RecipientEmail)
}

func (s *WorkflowTestSuite) TestProcessApprovalDenied() {
	approver := s.seedUser("mgr-1", "Alex Brand", "alex@example.com", domain.UserRoleManager)
	ticket := s.seedTicket("Expensive part needed")

	updated, applied, err := s.engine.ProcessApproval(s.ctx, ticket.ID, approver.ID, engine.DecisionDenied, "")
	s.Require().NoError(err)
	s.True(applied)
	s.Equal(domain.TicketStatusParked, updated.Status)
	s.Equal(domain.StageAwaitingAuthorization, updated.WorkflowStage)

	s.Require().Len(updated.Comments, 1)
	s.Equal("Approval denied by Alex Brand", updated.Comments[0].Content)

	// No assignee means no notification, but the event still fires.
	decided := s.dispatcher.byType(events.EventApprovalDecided)
	s.Require().Len(decided, 1)
	s.Empty(decided[0].Notifications)
}

func (s *WorkflowTestSuite) TestProcessApprovalRejectsUnknownDecision() {
	approver := s.seedUser("mgr-1", "Alex Brand", "alex@example.com", domain.UserRoleManager)
	ticket := s.seedTicket("Expensive part needed")

	_, applied, err := s.engine.ProcessApproval(s.ctx, ticket.ID, approver.ID, engine.ApprovalDecision("maybe"), "")
	s.Require().Error(err)
	s.False(applied)
	s.Equal("VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func (s *WorkflowTestSuite) TestProcessApprovalByTechnicianIsNoOp() {
	tech := s.seedUser("tech-1", "Jamie Fox", "jamie@example.com", domain.UserRoleTechnician)
	ticket := s.seedTicket("Expensive part needed")

	returned, applied, err := s.engine.ProcessApproval(s.ctx, ticket.ID, tech.ID, engine.DecisionApproved, "")
	s.Require().NoError(err)
	s.False(applied)
	s.Equal(domain.TicketStatusNew, returned.Status)
	s.Empty(s.dispatcher.byType(events.EventApprovalDecided))

	strict := s.newEngine(config.EngineConfig{StrictReferences: true})
	_, _, err = strict.ProcessApproval(s.ctx, ticket.ID, tech.ID, engine.DecisionApproved, "")
	s.Require().Error(err)
	s.Equal("FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func (s *WorkflowTestSuite) TestProcessApprovalUnknownApproverIsSilentNoOp() {
	ticket := s.seedTicket("Expensive part needed")

	returned, applied, err := s.engine.ProcessApproval(s.ctx, ticket.ID, "ghost", engine.DecisionApproved, "")
	s.Require().NoError(err)
	s.False(applied)
	s.Require().NotNil(returned)
	s.Equal(domain.TicketStatusNew, returned.Status)
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}
