package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationStatus represents the current state of a notification record.
type NotificationStatus string

// Possible notification status values
const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// ValidateNotificationStatus checks that a status string names a known state.
func ValidateNotificationStatus(s NotificationStatus) error {
	switch s {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNotificationStatus, s)
	}
}

// NotificationRecord is one entry in the delivery ledger: the audit trail of
// what was done with an event, and the dedup key that makes redelivery a
// no-op. A record is terminal once its status reaches sent or failed.
type NotificationRecord struct {
	EventID       uuid.UUID          `json:"event_id"`
	Channel       string             `json:"channel"`
	Status        NotificationStatus `json:"status"`
	AttemptCount  int                `json:"attempt_count"`
	LastAttemptAt *time.Time         `json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Terminal reports whether the record has reached a final state.
// A terminal record means the event has been fully handled and any
// redelivery of it must be skipped.
func (r *NotificationRecord) Terminal() bool {
	return r.Status == NotificationStatusSent || r.Status == NotificationStatusFailed
}
