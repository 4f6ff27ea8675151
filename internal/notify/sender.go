package notify

import (
	"context"

	"go.uber.org/zap"
)

type logSender struct {
	from   string
	logger *zap.Logger
}

// NewLogSender returns a Sender that only records the send. Stands in
// for the real mail gateway integration.
func NewLogSender(from string, logger *zap.Logger) Sender {
	return &logSender{from: from, logger: logger}
}

func (s *logSender) Send(_ context.Context, recipientEmail, subject, template string, ticketID *string) error {
	fields := []zap.Field{
		zap.String("from", s.from),
		zap.String("to", recipientEmail),
		zap.String("subject", subject),
		zap.String("template", template),
	}
	if ticketID != nil {
		fields = append(fields, zap.String("ticket_id", *ticketID))
	}
	s.logger.Info("notification sent", fields...)
	return nil
}
