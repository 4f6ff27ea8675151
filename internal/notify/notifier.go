package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/events"
	"github.com/fieldserve/ticket-engine/internal/repository"
)

// Sender is the external delivery collaborator (mail/SMS gateway). The
// engine only decides whether and to whom; Sender owns the how.
type Sender interface {
	Send(ctx context.Context, recipientEmail, subject, template string, ticketID *string) error
}

// Service consumes engine events and dispatches the notification
// decisions they carry, recording every attempt in the delivery log.
// Delivery failure never propagates back to the command that caused it.
type Service struct {
	dispatcher events.Dispatcher
	sender     Sender
	log        repository.NotificationLogRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates the service.
func NewService(dispatcher events.Dispatcher, sender Sender, log repository.NotificationLogRepository, logger *zap.Logger) *Service {
	return &Service{
		dispatcher: dispatcher,
		sender:     sender,
		log:        log,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to every event type that can carry
// notification decisions.
func (s *Service) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketPassed,
		events.EventApprovalRequested,
		events.EventApprovalDecided,
	} {
		s.dispatcher.Subscribe(eventType, s.handleEvent)
	}
}

func (s *Service) handleEvent(ctx context.Context, event events.Event) error {
	for _, notification := range event.Notifications {
		s.dispatch(ctx, event, notification)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event events.Event, notification events.Notification) {
	ticketID := event.TicketID
	record := &domain.DeliveryRecord{
		ID:             uuid.NewString(),
		RecipientEmail: notification.RecipientEmail,
		Subject:        notification.Subject,
		Template:       notification.Template,
		TicketID:       &ticketID,
		Status:         domain.DeliveryStatusSent,
		SentAt:         s.now(),
	}

	if err := s.sender.Send(ctx, notification.RecipientEmail, notification.Subject, notification.Template, &ticketID); err != nil {
		record.Status = domain.DeliveryStatusFailed
		record.Error = err.Error()
		s.logger.Warn("notification delivery failed",
			zap.String("recipient", notification.RecipientEmail),
			zap.String("template", notification.Template),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}

	if err := s.log.Append(ctx, record); err != nil {
		s.logger.Warn("failed to append delivery record", zap.Error(err))
	}
}

// ListDeliveries exposes the append-only delivery log for the email-log
// viewer.
func (s *Service) ListDeliveries(ctx context.Context, limit int) ([]domain.DeliveryRecord, error) {
	return s.log.List(ctx, limit)
}
