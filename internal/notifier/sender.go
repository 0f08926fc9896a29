// Package notifier consumes delivered task events and turns them into
// user-facing notifications, exactly once per event from this side of the
// broker.
package notifier

import (
	"context"
	"log/slog"
)

// Sender delivers a rendered notification over a channel. The channel
// backend (email, push) is an external collaborator; implementations wrap
// whatever transport serves it. Errors from Send are treated as transient
// and retried with backoff up to the configured attempt cap.
type Sender interface {
	Send(ctx context.Context, channel, message string) error
}

// LogSender is a Sender that writes notifications to the structured log.
// It stands in for real channel backends in development and test
// deployments, and doubles as the audit trail of what would have been sent.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for LogSender")
	}
	return &LogSender{
		logger: logger.With(slog.String("component", "log_sender")),
	}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, channel, message string) error {
	s.logger.Info("notification delivered",
		"channel", channel,
		"message", message)
	return nil
}
