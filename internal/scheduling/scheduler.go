package scheduling

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler is the external calendar collaborator. The engine asks it to
// create an entry when a ticket carries a scheduled date; everything else
// about scheduling lives outside this service.
type Scheduler interface {
	CreateEntry(ctx context.Context, ticketID, title string, at time.Time) error
}

type logScheduler struct {
	logger *zap.Logger
}

// NewLogScheduler returns a Scheduler that only records the request.
// Stands in for the real calendar service integration.
func NewLogScheduler(logger *zap.Logger) Scheduler {
	return &logScheduler{logger: logger}
}

func (s *logScheduler) CreateEntry(_ context.Context, ticketID, title string, at time.Time) error {
	s.logger.Info("calendar entry requested",
		zap.String("ticket_id", ticketID),
		zap.String("title", title),
		zap.Time("at", at))
	return nil
}
