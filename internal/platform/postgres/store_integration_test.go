package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/store"
)

// integrationDB opens a migrated test database, or skips the test when no
// DATABASE_URL is configured.
func integrationDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test - DATABASE_URL environment variable required")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "Failed to open database connection")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Error closing database connection: %v", err)
		}
	})

	require.NoError(t, MigrateUp(context.Background(), db), "Failed to run migrations")
	return db
}

// beginTestTx isolates a test inside a transaction that is always rolled
// back, so tests leave no rows behind and can run concurrently.
func beginTestTx(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")
	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Error rolling back transaction: %v", err)
		}
	})
	return tx
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func insertTestTemplate(t *testing.T, templates store.TemplateStore) *domain.RecurringTemplate {
	t.Helper()
	tpl, err := domain.NewRecurringTemplate(uuid.New(), "Water the plants", "",
		domain.RecurrenceRule{Kind: domain.RecurrenceDaily},
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, templates.Create(context.Background(), tpl))
	return tpl
}

func TestPostgresTemplateStoreIntegration(t *testing.T) {
	db := integrationDB(t)
	tx := beginTestTx(t, db)
	ctx := context.Background()
	templates := NewPostgresTemplateStore(tx, testLogger())

	t.Run("create and get round trip", func(t *testing.T) {
		tpl := insertTestTemplate(t, templates)

		got, err := templates.GetByID(ctx, tpl.TemplateID)
		require.NoError(t, err)
		assert.Equal(t, tpl.TemplateID, got.TemplateID)
		assert.Equal(t, tpl.OwnerID, got.OwnerID)
		assert.Equal(t, tpl.Rule, got.Rule)
		assert.True(t, got.NextOccurrence.Equal(tpl.NextOccurrence))
		assert.True(t, got.Enabled)
	})

	t.Run("get missing template", func(t *testing.T) {
		_, err := templates.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrTemplateNotFound)
	})

	t.Run("list due excludes future and disabled", func(t *testing.T) {
		due := insertTestTemplate(t, templates)
		future := insertTestTemplate(t, templates)
		disabled := insertTestTemplate(t, templates)

		now := due.NextOccurrence.Add(time.Hour)
		require.NoError(t, templates.AdvanceNextOccurrence(ctx,
			future.TemplateID, future.NextOccurrence, now.Add(24*time.Hour)))
		require.NoError(t, templates.SetEnabled(ctx,
			disabled.TemplateID, disabled.OwnerID, false))

		listed, err := templates.ListDue(ctx, now)
		require.NoError(t, err)

		ids := make(map[uuid.UUID]bool, len(listed))
		for _, tpl := range listed {
			ids[tpl.TemplateID] = true
		}
		assert.True(t, ids[due.TemplateID])
		assert.False(t, ids[future.TemplateID])
		assert.False(t, ids[disabled.TemplateID])
	})

	t.Run("advance is conditional on the current anchor", func(t *testing.T) {
		tpl := insertTestTemplate(t, templates)
		next := tpl.NextOccurrence.AddDate(0, 0, 1)

		require.NoError(t, templates.AdvanceNextOccurrence(ctx,
			tpl.TemplateID, tpl.NextOccurrence, next))

		got, err := templates.GetByID(ctx, tpl.TemplateID)
		require.NoError(t, err)
		assert.True(t, got.NextOccurrence.Equal(next))

		// A second advance from the stale anchor must be a silent no-op, the
		// way a losing replica's write lands.
		require.NoError(t, templates.AdvanceNextOccurrence(ctx,
			tpl.TemplateID, tpl.NextOccurrence, next.AddDate(0, 0, 5)))

		got, err = templates.GetByID(ctx, tpl.TemplateID)
		require.NoError(t, err)
		assert.True(t, got.NextOccurrence.Equal(next), "stale advance must not move the anchor")
	})

	t.Run("advance on missing template", func(t *testing.T) {
		err := templates.AdvanceNextOccurrence(ctx, uuid.New(), time.Now(), time.Now())
		assert.ErrorIs(t, err, store.ErrTemplateNotFound)
	})

	t.Run("set enabled requires matching owner", func(t *testing.T) {
		tpl := insertTestTemplate(t, templates)

		err := templates.SetEnabled(ctx, tpl.TemplateID, uuid.New(), false)
		assert.ErrorIs(t, err, store.ErrTemplateNotFound)

		got, err := templates.GetByID(ctx, tpl.TemplateID)
		require.NoError(t, err)
		assert.True(t, got.Enabled)
	})
}

func TestPostgresTaskInstanceStoreIntegration(t *testing.T) {
	db := integrationDB(t)
	tx := beginTestTx(t, db)
	ctx := context.Background()
	templates := NewPostgresTemplateStore(tx, testLogger())
	instances := NewPostgresTaskInstanceStore(tx, testLogger())

	tpl := insertTestTemplate(t, templates)
	occurrence := tpl.NextOccurrence

	t.Run("first insert wins and assigns the id", func(t *testing.T) {
		instance := domain.NewTaskInstance(tpl, occurrence)
		created, err := instances.CreateIfAbsent(ctx, instance)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Greater(t, instance.ID, int64(0), "store must write the assigned id back")

		exists, err := instances.ExistsForOccurrence(ctx, tpl.TemplateID, occurrence)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("repeated occurrence inserts nothing", func(t *testing.T) {
		duplicate := domain.NewTaskInstance(tpl, occurrence)
		created, err := instances.CreateIfAbsent(ctx, duplicate)
		require.NoError(t, err)
		assert.False(t, created, "the unique constraint must suppress the second insert")

		listed, err := instances.ListByTemplate(ctx, tpl.TemplateID)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("distinct occurrences get distinct rows", func(t *testing.T) {
		second := domain.NewTaskInstance(tpl, occurrence.AddDate(0, 0, 1))
		created, err := instances.CreateIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.True(t, created)

		listed, err := instances.ListByTemplate(ctx, tpl.TemplateID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.True(t, listed[0].OccurrenceDate.Before(listed[1].OccurrenceDate))
		assert.NotEqual(t, listed[0].ID, listed[1].ID)
	})
}

func TestPostgresNotificationStoreIntegration(t *testing.T) {
	db := integrationDB(t)
	tx := beginTestTx(t, db)
	ctx := context.Background()
	records := NewPostgresNotificationStore(tx, testLogger())

	t.Run("claim is first writer wins", func(t *testing.T) {
		eventID := uuid.New()

		record, err := records.ClaimEvent(ctx, eventID, "email")
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusPending, record.Status)
		assert.Zero(t, record.AttemptCount)

		// The losing claim gets the existing record back, not an insert.
		existing, err := records.ClaimEvent(ctx, eventID, "email")
		assert.ErrorIs(t, err, store.ErrDuplicateEvent)
		require.NotNil(t, existing)
		assert.Equal(t, eventID, existing.EventID)
		assert.Equal(t, domain.NotificationStatusPending, existing.Status)
	})

	t.Run("outcome round trip", func(t *testing.T) {
		eventID := uuid.New()
		_, err := records.ClaimEvent(ctx, eventID, "push")
		require.NoError(t, err)

		attemptAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, records.UpdateOutcome(ctx, eventID,
			domain.NotificationStatusSent, 2, attemptAt))

		got, err := records.GetByEventID(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, got.Status)
		assert.Equal(t, 2, got.AttemptCount)
		require.NotNil(t, got.LastAttemptAt)
		assert.True(t, got.LastAttemptAt.Equal(attemptAt))

		// A redelivery's claim sees the terminal state.
		existing, err := records.ClaimEvent(ctx, eventID, "push")
		assert.ErrorIs(t, err, store.ErrDuplicateEvent)
		assert.True(t, existing.Terminal())
	})

	t.Run("outcome for missing event", func(t *testing.T) {
		err := records.UpdateOutcome(ctx, uuid.New(),
			domain.NotificationStatusSent, 1, time.Now().UTC())
		assert.ErrorIs(t, err, store.ErrNotificationNotFound)
	})

	t.Run("outcome rejects unknown status", func(t *testing.T) {
		eventID := uuid.New()
		_, err := records.ClaimEvent(ctx, eventID, "email")
		require.NoError(t, err)

		err = records.UpdateOutcome(ctx, eventID, "delivered", 1, time.Now().UTC())
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

// Transactions run against the real connection rather than the rollback
// harness: nested transactions are not a thing in postgres.
func TestNotificationStoreRunInTransactionIntegration(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	records := NewPostgresNotificationStore(db, testLogger())

	eventID := uuid.New()
	t.Cleanup(func() {
		if _, err := db.Exec(`DELETE FROM notification_records WHERE event_id = $1`, eventID); err != nil {
			t.Logf("Error cleaning up notification record: %v", err)
		}
	})

	t.Run("rollback releases the claim", func(t *testing.T) {
		boom := errors.New("abandon claim")
		err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			txRecords := records.WithTx(tx)
			if _, err := txRecords.ClaimEvent(ctx, eventID, "email"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = records.GetByEventID(ctx, eventID)
		assert.ErrorIs(t, err, store.ErrNotificationNotFound,
			"a rolled-back claim must leave no record")
	})

	t.Run("commit makes claim and outcome visible together", func(t *testing.T) {
		err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			txRecords := records.WithTx(tx)
			record, err := txRecords.ClaimEvent(ctx, eventID, "email")
			if err != nil {
				return err
			}
			return txRecords.UpdateOutcome(ctx, eventID,
				domain.NotificationStatusFailed, record.AttemptCount, time.Now().UTC())
		})
		require.NoError(t, err)

		got, err := records.GetByEventID(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusFailed, got.Status)
	})
}
