package delivery

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/amishk599/jobfeed/internal/model"
)

// Ensure LogSender implements model.DeliveryService.
var _ model.DeliveryService = (*LogSender)(nil)

// LogSender writes messages to the logger instead of a provider. It backs
// dry runs and channels with no provider configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs each message via slog.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message and returns a generated reference. It never fails.
func (s *LogSender) Send(_ context.Context, msg model.Message) (string, error) {
	ref := "log-" + uuid.NewString()
	args := []any{"channel", msg.Channel, "recipient", msg.Recipient, "ref", ref}
	if msg.Subject != "" {
		args = append(args, "subject", msg.Subject)
	}
	s.logger.Info("notification", args...)
	s.logger.Debug("notification body", "ref", ref, "text", msg.Text)
	return ref, nil
}
