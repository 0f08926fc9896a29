// Package publisher turns committed task mutations into events on the
// task-events topic without ever affecting the caller's result.
package publisher

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/logger"
)

// PubClient is the slice of the sidecar client the publisher needs.
type PubClient interface {
	Publish(ctx context.Context, topic string, env *events.Envelope) error
}

// Publisher builds event envelopes for task mutations and hands them to the
// sidecar. It must be called only after the primary-store commit: publishing
// before the commit would reintroduce the dual-write ambiguity the
// commit-then-publish ordering exists to avoid.
//
// Publish failures are caught and logged here, never returned: the API
// response the user sees is determined solely by the primary-store commit.
type Publisher struct {
	client PubClient
	topic  string
	source string
	logger *slog.Logger
}

// New creates a Publisher from sidecar configuration.
func New(client PubClient, cfg config.SidecarConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Publisher")
	}
	return &Publisher{
		client: client,
		topic:  cfg.TaskEventsTopic,
		source: cfg.Source,
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// TaskMutated publishes an event for a committed task mutation. The returned
// event ID identifies the envelope for audit logging; it is returned even
// when the handoff failed, since the failure is absorbed here.
func (p *Publisher) TaskMutated(
	ctx context.Context,
	eventType events.EventType,
	snapshot events.TaskEventData,
) uuid.UUID {
	return p.publish(ctx, eventType, snapshot)
}

// ReminderDue publishes a reminder.due event for a task whose reminder time
// has arrived.
func (p *Publisher) ReminderDue(ctx context.Context, reminder events.ReminderDueData) uuid.UUID {
	return p.publish(ctx, events.EventTypeReminderDue, reminder)
}

func (p *Publisher) publish(ctx context.Context, eventType events.EventType, payload interface{}) uuid.UUID {
	log := logger.FromContextOrDefault(ctx, p.logger)

	env, err := events.NewEnvelope(eventType, p.source, payload)
	if err != nil {
		log.Error("failed to build event envelope",
			"event_type", eventType,
			"error", err)
		return uuid.Nil
	}

	if err := p.client.Publish(ctx, p.topic, env); err != nil {
		// Swallowed deliberately: messaging failures are operational,
		// recoverable by replay, and must not surface to the request caller.
		log.Error("failed to hand off event to sidecar",
			"event_id", env.EventID,
			"event_type", env.EventType,
			"topic", p.topic,
			"error", err)
		return env.EventID
	}

	log.Info("published task event",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"topic", p.topic)
	return env.EventID
}
