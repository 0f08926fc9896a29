package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/store"
)

// PostgresTaskInstanceStore implements the store.TaskInstanceStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskInstanceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresTaskInstanceStore implements store.TaskInstanceStore interface
var _ store.TaskInstanceStore = (*PostgresTaskInstanceStore)(nil)

// NewPostgresTaskInstanceStore creates a new PostgreSQL implementation of the
// TaskInstanceStore interface.
func NewPostgresTaskInstanceStore(db store.DBTX, logger *slog.Logger) *PostgresTaskInstanceStore {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PostgresTaskInstanceStore")
	}
	return &PostgresTaskInstanceStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_instance_store")),
	}
}

// CreateIfAbsent implements store.TaskInstanceStore.CreateIfAbsent
//
// The ON CONFLICT DO NOTHING clause against the (template_id, occurrence_date)
// unique index is the whole concurrency story for the generator: whichever
// replica's insert lands first creates the occurrence, every other attempt
// inserts nothing. No lock, no coordination, no duplicate tasks. On a fresh
// insert the database-assigned id is written back into instance.ID.
func (s *PostgresTaskInstanceStore) CreateIfAbsent(ctx context.Context, instance *domain.TaskInstance) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO task_instances
			(template_id, occurrence_date, owner_id, title, description, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (template_id, occurrence_date) DO NOTHING
		RETURNING id
	`
	var due *time.Time
	if instance.DueDate != nil {
		d := instance.DueDate.UTC()
		due = &d
	}
	err := s.db.QueryRowContext(ctx, query,
		instance.TemplateID,
		instance.OccurrenceDate.UTC(),
		instance.OwnerID,
		instance.Title,
		instance.Description,
		due,
		instance.CreatedAt.UTC(),
	).Scan(&instance.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// RETURNING yields no row when the conflict clause suppressed the insert.
		log.Debug("task instance already exists for occurrence",
			"template_id", instance.TemplateID,
			"occurrence_date", instance.OccurrenceDate)
		return false, nil
	}
	if err != nil {
		log.Error("failed to insert task instance",
			"template_id", instance.TemplateID,
			"occurrence_date", instance.OccurrenceDate,
			"error", err)
		return false, MapError(err)
	}

	log.Debug("created task instance",
		"instance_id", instance.ID,
		"template_id", instance.TemplateID,
		"occurrence_date", instance.OccurrenceDate)
	return true, nil
}

// ListByTemplate implements store.TaskInstanceStore.ListByTemplate
func (s *PostgresTaskInstanceStore) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.TaskInstance, error) {
	query := `
		SELECT id, template_id, occurrence_date, owner_id, title, description, due_date, created_at
		FROM task_instances
		WHERE template_id = $1
		ORDER BY occurrence_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var instances []*domain.TaskInstance
	for rows.Next() {
		var inst domain.TaskInstance
		err := rows.Scan(
			&inst.ID,
			&inst.TemplateID,
			&inst.OccurrenceDate,
			&inst.OwnerID,
			&inst.Title,
			&inst.Description,
			&inst.DueDate,
			&inst.CreatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		instances = append(instances, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return instances, nil
}

// ExistsForOccurrence implements store.TaskInstanceStore.ExistsForOccurrence
func (s *PostgresTaskInstanceStore) ExistsForOccurrence(ctx context.Context, templateID uuid.UUID, occurrence time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM task_instances
			WHERE template_id = $1 AND occurrence_date = $2
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, templateID, occurrence.UTC()).Scan(&exists); err != nil {
		return false, MapError(err)
	}
	return exists, nil
}
