package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/store"
)

// PostgresTemplateStore implements the store.TemplateStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresTemplateStore implements store.TemplateStore interface
var _ store.TemplateStore = (*PostgresTemplateStore)(nil)

// NewPostgresTemplateStore creates a new PostgreSQL implementation of the
// TemplateStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresTemplateStore {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PostgresTemplateStore")
	}
	return &PostgresTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

// Create implements store.TemplateStore.Create
func (s *PostgresTemplateStore) Create(ctx context.Context, tpl *domain.RecurringTemplate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	rule, err := json.Marshal(tpl.Rule)
	if err != nil {
		return fmt.Errorf("%w: failed to encode recurrence rule: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO recurring_templates
			(template_id, owner_id, title, description, recurrence_rule,
			 next_occurrence, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		tpl.TemplateID,
		tpl.OwnerID,
		tpl.Title,
		tpl.Description,
		rule,
		tpl.NextOccurrence.UTC(),
		tpl.Enabled,
		tpl.CreatedAt.UTC(),
		tpl.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create recurring template",
			"template_id", tpl.TemplateID,
			"error", err)
		return MapError(err)
	}

	log.Debug("created recurring template",
		"template_id", tpl.TemplateID,
		"owner_id", tpl.OwnerID)
	return nil
}

// GetByID implements store.TemplateStore.GetByID
func (s *PostgresTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error) {
	query := `
		SELECT template_id, owner_id, title, description, recurrence_rule,
		       next_occurrence, enabled, created_at, updated_at
		FROM recurring_templates
		WHERE template_id = $1
	`
	tpl, err := scanTemplate(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTemplateNotFound
		}
		return nil, MapError(err)
	}
	return tpl, nil
}

// ListByOwner implements store.TemplateStore.ListByOwner
func (s *PostgresTemplateStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.RecurringTemplate, error) {
	query := `
		SELECT template_id, owner_id, title, description, recurrence_rule,
		       next_occurrence, enabled, created_at, updated_at
		FROM recurring_templates
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`
	return s.queryTemplates(ctx, query, ownerID)
}

// ListDue implements store.TemplateStore.ListDue
func (s *PostgresTemplateStore) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error) {
	query := `
		SELECT template_id, owner_id, title, description, recurrence_rule,
		       next_occurrence, enabled, created_at, updated_at
		FROM recurring_templates
		WHERE enabled AND next_occurrence <= $1
		ORDER BY next_occurrence ASC
	`
	return s.queryTemplates(ctx, query, now.UTC())
}

// AdvanceNextOccurrence implements store.TemplateStore.AdvanceNextOccurrence
func (s *PostgresTemplateStore) AdvanceNextOccurrence(ctx context.Context, id uuid.UUID, from, to time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Conditional on the current anchor: a concurrent replica that already
	// advanced past `from` leaves this a no-op instead of rewinding.
	query := `
		UPDATE recurring_templates
		SET next_occurrence = $1, updated_at = $2
		WHERE template_id = $3 AND next_occurrence = $4
	`
	result, err := s.db.ExecContext(ctx, query, to.UTC(), time.Now().UTC(), id, from.UTC())
	if err != nil {
		log.Error("failed to advance template occurrence",
			"template_id", id,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the template is gone or another replica advanced it first.
		// Distinguish the two so callers can treat the race as success.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		log.Debug("template already advanced by another replica",
			"template_id", id,
			"from", from,
			"to", to)
		return nil
	}
	return nil
}

// SetEnabled implements store.TemplateStore.SetEnabled
func (s *PostgresTemplateStore) SetEnabled(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, enabled bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE recurring_templates
		SET enabled = $1, updated_at = $2
		WHERE template_id = $3 AND owner_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, enabled, time.Now().UTC(), id, ownerID)
	if err != nil {
		log.Error("failed to toggle template",
			"template_id", id,
			"enabled", enabled,
			"error", err)
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "recurring template"); err != nil {
		return store.ErrTemplateNotFound
	}

	log.Info("toggled recurring template",
		"template_id", id,
		"enabled", enabled)
	return nil
}

func (s *PostgresTemplateStore) queryTemplates(ctx context.Context, query string, args ...any) ([]*domain.RecurringTemplate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*domain.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, MapError(err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return templates, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*domain.RecurringTemplate, error) {
	var (
		tpl  domain.RecurringTemplate
		rule []byte
	)
	err := row.Scan(
		&tpl.TemplateID,
		&tpl.OwnerID,
		&tpl.Title,
		&tpl.Description,
		&rule,
		&tpl.NextOccurrence,
		&tpl.Enabled,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rule, &tpl.Rule); err != nil {
		return nil, fmt.Errorf("failed to decode recurrence rule: %w", err)
	}
	return &tpl, nil
}
