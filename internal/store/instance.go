package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
)

// TaskInstanceStore defines the interface for generated task persistence.
type TaskInstanceStore interface {
	// CreateIfAbsent inserts a task instance unless one already exists for
	// its (template_id, occurrence_date) pair. The uniqueness decision is
	// made by the database constraint, not application logic, so concurrent
	// generator replicas attempting the same occurrence race safely: exactly
	// one insert wins and the rest observe created == false.
	//
	// Returns created == true when this call inserted the row, created ==
	// false (and a nil error) when the occurrence already existed. On a
	// fresh insert the store writes the assigned id back into instance.ID.
	CreateIfAbsent(ctx context.Context, instance *domain.TaskInstance) (created bool, err error)

	// ListByTemplate retrieves all instances generated from a template,
	// ordered by occurrence date.
	ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.TaskInstance, error)

	// ExistsForOccurrence reports whether an instance exists for the pair.
	ExistsForOccurrence(ctx context.Context, templateID uuid.UUID, occurrence time.Time) (bool, error)
}
