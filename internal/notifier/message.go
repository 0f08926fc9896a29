package notifier

import (
	"fmt"

	"github.com/taskwire/taskwire/internal/events"
)

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// channelFor selects the delivery channel for an event type. Lifecycle
// events go to email; reminders are time-sensitive and go to push.
func channelFor(eventType events.EventType) string {
	if eventType == events.EventTypeReminderDue {
		return ChannelPush
	}
	return ChannelEmail
}

// renderMessage produces the user-facing notification text for a decoded
// event. Callers have already validated the payload, so the matching field
// of the payload union is guaranteed to be set.
func renderMessage(eventType events.EventType, payload *events.Payload) string {
	switch eventType {
	case events.EventTypeTaskCreated:
		if payload.Task.DueDate != nil {
			return fmt.Sprintf("New task created: %q (due %s)", payload.Task.Title, *payload.Task.DueDate)
		}
		return fmt.Sprintf("New task created: %q", payload.Task.Title)
	case events.EventTypeTaskUpdated:
		return fmt.Sprintf("Task updated: %q", payload.Task.Title)
	case events.EventTypeTaskCompleted:
		return fmt.Sprintf("Task completed: %q, nice work!", payload.Task.Title)
	case events.EventTypeTaskDeleted:
		return fmt.Sprintf("Task deleted: %q", payload.Task.Title)
	case events.EventTypeReminderDue:
		return fmt.Sprintf("Reminder: %q is due at %s",
			payload.Reminder.Title,
			payload.Reminder.ScheduledAt.Format("2006-01-02 15:04"))
	default:
		// Unreachable after payload validation.
		return fmt.Sprintf("Task event: %s", eventType)
	}
}
