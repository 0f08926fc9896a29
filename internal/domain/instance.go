package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskInstance is an ordinary task row produced from a recurring template,
// tagged with the template it came from and the occurrence it represents.
// ID is assigned by the database on insert, like any other task row.
// The pair (TemplateID, OccurrenceDate) is unique, enforced by a database
// constraint rather than application logic; that constraint is what makes
// concurrent generator replicas safe without a distributed lock.
type TaskInstance struct {
	ID             int64      `json:"id"`
	TemplateID     uuid.UUID  `json:"template_id"`
	OccurrenceDate time.Time  `json:"occurrence_date"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewTaskInstance materializes one occurrence of a template as a task.
// The occurrence itself doubles as the task's due date. The ID remains
// zero until the store assigns one.
func NewTaskInstance(tpl *RecurringTemplate, occurrence time.Time) *TaskInstance {
	due := occurrence.UTC()
	return &TaskInstance{
		TemplateID:     tpl.TemplateID,
		OccurrenceDate: occurrence.UTC(),
		OwnerID:        tpl.OwnerID,
		Title:          tpl.Title,
		Description:    tpl.Description,
		DueDate:        &due,
		CreatedAt:      time.Now().UTC(),
	}
}
