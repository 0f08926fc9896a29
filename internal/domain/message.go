package domain

import (
	"errors"
	"time"
)

// Message-specific validation errors
var (
	// ErrMessageRoleInvalid is returned when a message role is not recognized.
	ErrMessageRoleInvalid = errors.New("message role must be user, assistant, or system")

	// ErrMessageContentEmpty is returned when a message has no content.
	ErrMessageContentEmpty = errors.New("message content cannot be empty")
)

// Known message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Message is one turn in a conversation. Conversations are externalized
// whole (an ordered message list per conversation ID) so that any stateless
// replica can resume them; messages themselves are never updated in place.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks if the message has valid data.
func (m Message) Validate() error {
	switch m.Role {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
	default:
		return ErrMessageRoleInvalid
	}
	if m.Content == "" {
		return ErrMessageContentEmpty
	}
	return nil
}
