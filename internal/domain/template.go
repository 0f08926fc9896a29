package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Template-specific validation errors
var (
	// ErrTemplateIDEmpty is returned when a template ID is empty or nil.
	ErrTemplateIDEmpty = errors.New("template ID cannot be empty")

	// ErrTemplateOwnerIDEmpty is returned when a template's owner ID is empty or nil.
	ErrTemplateOwnerIDEmpty = errors.New("template owner ID cannot be empty")

	// ErrTemplateTitleEmpty is returned when a template's title is empty.
	ErrTemplateTitleEmpty = errors.New("template title cannot be empty")

	// ErrTemplateNextOccurrenceZero is returned when a template has no next occurrence set.
	ErrTemplateNextOccurrenceZero = errors.New("template next occurrence must be set")
)

// RecurringTemplate is the blueprint a recurring task is generated from.
// NextOccurrence is the anchor of the schedule: the generator advances it
// deterministically through the recurrence rule, so two replicas walking the
// same template always compute the same sequence of occurrence dates.
// Templates are never hard-deleted while instances reference them; removal
// is a soft-disable via Enabled.
type RecurringTemplate struct {
	TemplateID     uuid.UUID      `json:"template_id"`
	OwnerID        uuid.UUID      `json:"owner_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Rule           RecurrenceRule `json:"recurrence_rule"`
	NextOccurrence time.Time      `json:"next_occurrence"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewRecurringTemplate creates a new template with the given owner, title,
// rule, and first occurrence. It generates a new UUID for the template ID
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewRecurringTemplate(
	ownerID uuid.UUID,
	title, description string,
	rule RecurrenceRule,
	firstOccurrence time.Time,
) (*RecurringTemplate, error) {
	tpl := &RecurringTemplate{
		TemplateID:     uuid.New(),
		OwnerID:        ownerID,
		Title:          title,
		Description:    description,
		Rule:           rule,
		NextOccurrence: firstOccurrence.UTC(),
		Enabled:        true,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	return tpl, nil
}

// Validate checks if the template has valid data.
// Returns an error if any field fails validation.
func (t *RecurringTemplate) Validate() error {
	if t.TemplateID == uuid.Nil {
		return ErrTemplateIDEmpty
	}
	if t.OwnerID == uuid.Nil {
		return ErrTemplateOwnerIDEmpty
	}
	if t.Title == "" {
		return ErrTemplateTitleEmpty
	}
	if t.NextOccurrence.IsZero() {
		return ErrTemplateNextOccurrenceZero
	}
	return t.Rule.Validate()
}
