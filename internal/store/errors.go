package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity. For this codebase duplicates are usually expected
	// (a redelivered event, a concurrent generator replica) and are treated
	// as success by callers, not as failures.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTemplateNotFound indicates that the requested recurring template does not exist.
	ErrTemplateNotFound = fmt.Errorf("%w: recurring template", ErrNotFound)

	// ErrNotificationNotFound indicates that the requested notification record does not exist.
	ErrNotificationNotFound = fmt.Errorf("%w: notification record", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrDuplicateInstance indicates a task instance already exists for a
	// (template_id, occurrence_date) pair. It means another replica, or a
	// retried tick, generated the occurrence first.
	ErrDuplicateInstance = fmt.Errorf("%w: task instance", ErrDuplicate)

	// ErrDuplicateEvent indicates a notification record already exists for an
	// event ID: the event was already claimed by this or another consumer
	// instance.
	ErrDuplicateEvent = fmt.Errorf("%w: event", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
