package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope schema version stamped on every event
// published by this codebase.
const SchemaVersion = "v1"

// EventType identifies what happened to produce an event. The set is closed:
// consumers reject anything else as a permanent validation failure rather
// than attempting best-effort field access.
type EventType string

// The closed set of event types carried on the task-events topic.
const (
	EventTypeTaskCreated   EventType = "task.created"
	EventTypeTaskUpdated   EventType = "task.updated"
	EventTypeTaskCompleted EventType = "task.completed"
	EventTypeTaskDeleted   EventType = "task.deleted"
	EventTypeReminderDue   EventType = "reminder.due"
)

// Envelope validation errors.
var (
	// ErrValidation is the root of all envelope validation failures.
	// Failures wrapping it are permanent: they are recorded and never retried.
	ErrValidation = errors.New("envelope validation failed")

	// ErrUnknownEventType is returned when an envelope carries an event type
	// outside the closed set.
	ErrUnknownEventType = fmt.Errorf("%w: unknown event type", ErrValidation)

	// ErrInvalidEnvelope is returned when an envelope is structurally
	// malformed (missing ID, bad payload, wrong payload shape for its type).
	ErrInvalidEnvelope = fmt.Errorf("%w: invalid envelope", ErrValidation)
)

// Envelope is the unit of communication on every topic. Envelopes are value
// objects: assembled once at publish time and never mutated after that.
// EventID is the sole deduplication key downstream.
type Envelope struct {
	// EventID is a globally unique identifier assigned by the publisher.
	EventID uuid.UUID `json:"event_id"`

	// EventType names what happened, from the closed set above.
	EventType EventType `json:"event_type"`

	// SchemaVersion is the envelope schema version, e.g. "v1".
	SchemaVersion string `json:"schema_version"`

	// Timestamp is the creation instant, assigned by the publisher.
	Timestamp time.Time `json:"timestamp"`

	// Source is the logical name of the publishing component.
	Source string `json:"source"`

	// Data is the type-specific payload, decoded via DecodePayload.
	Data json.RawMessage `json:"data"`
}

// NewEnvelope creates an envelope for the given type and payload with a
// freshly assigned event ID and UTC timestamp.
func NewEnvelope(eventType EventType, source string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          data,
	}, nil
}

// KnownEventType reports whether t belongs to the closed event type set.
func KnownEventType(t EventType) bool {
	switch t {
	case EventTypeTaskCreated, EventTypeTaskUpdated, EventTypeTaskCompleted,
		EventTypeTaskDeleted, EventTypeReminderDue:
		return true
	}
	return false
}
