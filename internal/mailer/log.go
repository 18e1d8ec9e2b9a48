package mailer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/logging"
)

// LogSender records sends in the log without delivering anything. Used in development
// when no Resend key is configured. Bodies are never logged.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a LogSender writing to logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the recipient and subject and returns a random message ID.
func (s *LogSender) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	id := uuid.NewString()
	s.logger.Info("mail not delivered (log sender)",
		zap.String("to", logging.MaskEmail(to)),
		zap.String("subject", subject),
		zap.String("message_id", id),
	)
	return id, nil
}
