package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
)

// NotificationStore defines the interface for the delivery ledger: the
// per-event audit trail that doubles as the consumer's dedup key set.
type NotificationStore interface {
	// ClaimEvent atomically creates a pending record for an event ID. The
	// event_id primary key makes the claim a first-writer-wins race: a
	// redelivered event, or the same event delivered to a second consumer
	// instance, gets ErrDuplicateEvent and the existing record back so the
	// caller can decide whether processing already finished.
	ClaimEvent(ctx context.Context, eventID uuid.UUID, channel string) (*domain.NotificationRecord, error)

	// UpdateOutcome records the result of a delivery attempt: the new status,
	// the cumulative attempt count, and the attempt instant.
	// Returns ErrNotificationNotFound if no record exists for the event.
	UpdateOutcome(
		ctx context.Context,
		eventID uuid.UUID,
		status domain.NotificationStatus,
		attemptCount int,
		attemptAt time.Time,
	) error

	// GetByEventID retrieves the record for an event.
	// Returns ErrNotificationNotFound if none exists.
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.NotificationRecord, error)

	// WithTx returns a new NotificationStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
