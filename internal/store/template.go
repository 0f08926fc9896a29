package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
)

// TemplateStore defines the interface for recurring template persistence.
type TemplateStore interface {
	// Create saves a new recurring template.
	// Returns validation errors if the template data is invalid.
	Create(ctx context.Context, tpl *domain.RecurringTemplate) error

	// GetByID retrieves a template by its unique ID.
	// Returns ErrTemplateNotFound if the template does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error)

	// ListByOwner retrieves all templates belonging to an owner, including
	// disabled ones, ordered by creation time.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.RecurringTemplate, error)

	// ListDue retrieves all enabled templates whose next occurrence is at or
	// before the given instant. This is the generator's per-tick scan.
	ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error)

	// AdvanceNextOccurrence moves a template's schedule anchor forward.
	// The update is conditional on the current value so that two generator
	// replicas advancing the same template concurrently cannot move it
	// backwards or skip ahead twice: the second writer's condition fails and
	// the call is a no-op.
	// Returns ErrTemplateNotFound if the template does not exist.
	AdvanceNextOccurrence(ctx context.Context, id uuid.UUID, from, to time.Time) error

	// SetEnabled toggles a template on or off. Disabling is the only form of
	// deletion: templates are never removed while instances reference them.
	// Returns ErrTemplateNotFound if the template does not exist.
	SetEnabled(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, enabled bool) error
}
