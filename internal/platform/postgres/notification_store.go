package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/store"
)

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresNotificationStore implements store.NotificationStore interface
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// NewPostgresNotificationStore creates a new PostgreSQL implementation of the
// NotificationStore interface.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PostgresNotificationStore")
	}
	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// WithTx implements store.NotificationStore.WithTx
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{
		db:     tx,
		logger: s.logger,
	}
}

// ClaimEvent implements store.NotificationStore.ClaimEvent
//
// The event_id primary key turns the insert into a first-writer-wins claim:
// a redelivery or a concurrent consumer instance gets ErrDuplicateEvent and
// the already-existing record, so the caller can see how far processing got.
func (s *PostgresNotificationStore) ClaimEvent(ctx context.Context, eventID uuid.UUID, channel string) (*domain.NotificationRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record := &domain.NotificationRecord{
		EventID:      eventID,
		Channel:      channel,
		Status:       domain.NotificationStatusPending,
		AttemptCount: 0,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO notification_records
			(event_id, channel, status, attempt_count, last_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.EventID,
		record.Channel,
		record.Status,
		record.AttemptCount,
		record.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, getErr := s.GetByEventID(ctx, eventID)
			if getErr != nil {
				return nil, getErr
			}
			log.Debug("event already claimed",
				"event_id", eventID,
				"status", existing.Status)
			return existing, store.ErrDuplicateEvent
		}
		log.Error("failed to claim event",
			"event_id", eventID,
			"error", err)
		return nil, MapError(err)
	}

	return record, nil
}

// UpdateOutcome implements store.NotificationStore.UpdateOutcome
func (s *PostgresNotificationStore) UpdateOutcome(
	ctx context.Context,
	eventID uuid.UUID,
	status domain.NotificationStatus,
	attemptCount int,
	attemptAt time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateNotificationStatus(status); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE notification_records
		SET status = $1, attempt_count = $2, last_attempt_at = $3
		WHERE event_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, attemptCount, attemptAt.UTC(), eventID)
	if err != nil {
		log.Error("failed to update notification outcome",
			"event_id", eventID,
			"status", status,
			"error", err)
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "notification record"); err != nil {
		return store.ErrNotificationNotFound
	}
	return nil
}

// GetByEventID implements store.NotificationStore.GetByEventID
func (s *PostgresNotificationStore) GetByEventID(ctx context.Context, eventID uuid.UUID) (*domain.NotificationRecord, error) {
	query := `
		SELECT event_id, channel, status, attempt_count, last_attempt_at, created_at
		FROM notification_records
		WHERE event_id = $1
	`
	var record domain.NotificationRecord
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&record.EventID,
		&record.Channel,
		&record.Status,
		&record.AttemptCount,
		&record.LastAttemptAt,
		&record.CreatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, MapError(err)
	}
	return &record, nil
}
