package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskEventData is the payload for all task.* event types: a snapshot of the
// task's fields at mutation time, not a reference the consumer would have to
// dereference against the primary store.
type TaskEventData struct {
	TaskID  int64     `json:"task_id"`
	UserID  uuid.UUID `json:"user_id"`
	Title   string    `json:"title"`
	DueDate *string   `json:"due_date"`
}

// ReminderDueData is the payload for reminder.due events.
type ReminderDueData struct {
	TaskID      int64     `json:"task_id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Payload is the decoded, type-checked form of an envelope's data field.
// Exactly one of the fields is set, matching the envelope's event type.
type Payload struct {
	Task     *TaskEventData
	Reminder *ReminderDueData
}

// UserID returns the owning user of whichever variant is set.
func (p *Payload) UserID() uuid.UUID {
	switch {
	case p.Task != nil:
		return p.Task.UserID
	case p.Reminder != nil:
		return p.Reminder.UserID
	default:
		return uuid.Nil
	}
}

// DecodePayload validates an envelope at the consumer boundary and decodes
// its data field into the payload shape for its event type. An unknown event
// type or a structurally invalid envelope is a permanent validation failure;
// callers record it as terminally failed and never retry.
func DecodePayload(env *Envelope) (*Payload, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	}
	if env.EventID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing event_id", ErrInvalidEnvelope)
	}
	if !KnownEventType(env.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidEnvelope)
	}

	switch env.EventType {
	case EventTypeReminderDue:
		var data ReminderDueData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: bad reminder payload: %v", ErrInvalidEnvelope, err)
		}
		if data.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: reminder payload missing user_id", ErrInvalidEnvelope)
		}
		return &Payload{Reminder: &data}, nil

	default:
		var data TaskEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: bad task payload: %v", ErrInvalidEnvelope, err)
		}
		if data.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: task payload missing user_id", ErrInvalidEnvelope)
		}
		return &Payload{Task: &data}, nil
	}
}
