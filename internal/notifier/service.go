package notifier

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/statestore"
	"github.com/taskwire/taskwire/internal/store"
)

// markerKeyPrefix namespaces dedup markers within the state store.
const markerKeyPrefix = "notified:"

// dedupMarker is the state-store entry written once an event reaches a
// terminal state. It is a cache in front of the notification ledger, not
// the source of truth: a missing or unreadable marker just means the
// ledger gets consulted.
type dedupMarker struct {
	Status    domain.NotificationStatus `json:"status"`
	HandledAt time.Time                 `json:"handled_at"`
}

// Service processes events delivered by the sidecar. Per event the state
// machine is: claim (dedup) → attempt delivery with bounded backoff →
// terminal sent or failed. Redelivered events with a terminal record are
// acknowledged without side effects.
type Service struct {
	records         store.NotificationStore
	markers         *statestore.Accessor
	conversations   *statestore.ConversationStore
	sender          Sender
	maxAttempts     int
	backoffBase     time.Duration
	markerTTL       int
	conversationTTL int
	logger          *slog.Logger

	// sleep is injectable so tests can observe backoff without waiting it out.
	sleep func(ctx context.Context, d time.Duration) error

	// runInTx executes fn inside a ledger transaction. Injectable so tests
	// can run against in-memory ledgers without a database.
	runInTx func(ctx context.Context, fn store.TxFn) error
}

// NewService creates a notification Service. db is the connection the ledger
// runs transactions on; it must be the same database records writes to.
func NewService(
	db *sql.DB,
	records store.NotificationStore,
	markers *statestore.Accessor,
	conversations *statestore.ConversationStore,
	sender Sender,
	cfg config.NotifierConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Service")
	}
	return &Service{
		records:         records,
		markers:         markers,
		conversations:   conversations,
		sender:          sender,
		maxAttempts:     cfg.MaxAttempts,
		backoffBase:     time.Duration(cfg.BackoffBaseMillis) * time.Millisecond,
		markerTTL:       cfg.DedupMarkerTTLSeconds,
		conversationTTL: cfg.ConversationTTLSeconds,
		logger:          logger.With(slog.String("component", "notifier_service")),
		sleep:           sleepWithContext,
		runInTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// HandleEvent processes one delivered envelope.
//
// The returned error means "the ledger could not be consulted, redeliver":
// the HTTP handler maps it to a 5xx so the broker tries again later.
// Everything else (success, duplicates, permanent validation failures,
// exhausted retries) returns nil, because redelivery cannot improve any of
// those outcomes.
func (s *Service) HandleEvent(ctx context.Context, env *events.Envelope) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	payload, decodeErr := events.DecodePayload(env)
	if decodeErr != nil {
		return s.handleInvalid(ctx, env, decodeErr)
	}

	eventID := env.EventID
	log = log.With(slog.String("event_id", eventID.String()), slog.String("event_type", string(env.EventType)))

	// Fast path: a terminal marker in the state store lets us skip the
	// ledger round-trip. An unreadable marker is ignored; a duplicate ledger
	// check is preferable to losing a notification.
	var marker dedupMarker
	if found, err := s.markers.GetJSON(ctx, markerKeyPrefix+eventID.String(), &marker); err != nil {
		log.Warn("dedup marker check failed, falling through to ledger", "error", err)
	} else if found {
		log.Debug("event already handled, skipping", "status", marker.Status)
		return nil
	}

	channel := channelFor(env.EventType)

	record, err := s.records.ClaimEvent(ctx, eventID, channel)
	if errors.Is(err, store.ErrDuplicateEvent) {
		if record.Terminal() {
			log.Info("duplicate delivery of handled event, skipping", "status", record.Status)
			s.writeMarker(ctx, eventID, record.Status)
			return nil
		}
		// A pending record means an earlier processing attempt died before
		// reaching a terminal state. Resume from its attempt count.
		log.Info("resuming interrupted event", "attempt_count", record.AttemptCount)
	} else if err != nil {
		log.Error("notification ledger unavailable", "error", err)
		return err
	}

	message := renderMessage(env.EventType, payload)
	return s.deliver(ctx, log, eventID, channel, message, payload.UserID(), record.AttemptCount)
}

// handleInvalid records a permanent validation failure. These are never
// retried: redelivering a malformed envelope yields the same failure.
func (s *Service) handleInvalid(ctx context.Context, env *events.Envelope, cause error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if env == nil || env.EventID == uuid.Nil {
		// Without an event ID there is nothing to key a record on; log for
		// manual inspection and acknowledge so the broker stops redelivering.
		log.Error("discarding envelope with no usable event ID", "error", cause)
		return nil
	}

	log.Error("permanent validation failure, recording as failed",
		"event_id", env.EventID,
		"error", cause)

	// Claim and terminal write happen in one transaction: a crash between
	// them would otherwise leave a pending record for an event that will
	// never deliver.
	err := s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		records := s.records.WithTx(tx)

		record, err := records.ClaimEvent(ctx, env.EventID, channelFor(env.EventType))
		if errors.Is(err, store.ErrDuplicateEvent) {
			if record.Terminal() {
				return nil
			}
		} else if err != nil {
			return err
		}

		return records.UpdateOutcome(ctx, env.EventID, domain.NotificationStatusFailed, record.AttemptCount, time.Now().UTC())
	})
	if err != nil {
		log.Error("failed to record validation failure", "event_id", env.EventID, "error", err)
		return err
	}
	s.writeMarker(ctx, env.EventID, domain.NotificationStatusFailed)
	return nil
}

// deliver attempts channel delivery with exponential backoff, starting after
// any attempts a previous incarnation already made.
func (s *Service) deliver(
	ctx context.Context,
	log *slog.Logger,
	eventID uuid.UUID,
	channel, message string,
	userID uuid.UUID,
	priorAttempts int,
) error {
	for attempt := priorAttempts + 1; attempt <= s.maxAttempts; attempt++ {
		sendErr := s.sender.Send(ctx, channel, message)
		now := time.Now().UTC()

		if sendErr == nil {
			if err := s.records.UpdateOutcome(ctx, eventID, domain.NotificationStatusSent, attempt, now); err != nil {
				log.Error("delivered but failed to record outcome", "error", err)
				return err
			}
			log.Info("notification sent", "channel", channel, "attempts", attempt)
			s.writeMarker(ctx, eventID, domain.NotificationStatusSent)
			s.mirrorToConversation(ctx, userID, message)
			return nil
		}

		if attempt == s.maxAttempts {
			if err := s.records.UpdateOutcome(ctx, eventID, domain.NotificationStatusFailed, attempt, now); err != nil {
				log.Error("failed to record terminal failure", "error", err)
				return err
			}
			// Terminal. Not requeued; left in the ledger for manual inspection.
			log.Error("delivery failed after exhausting retries",
				"channel", channel,
				"attempts", attempt,
				"error", sendErr)
			s.writeMarker(ctx, eventID, domain.NotificationStatusFailed)
			return nil
		}

		if err := s.records.UpdateOutcome(ctx, eventID, domain.NotificationStatusPending, attempt, now); err != nil {
			log.Warn("failed to record attempt", "attempt", attempt, "error", err)
		}

		backoff := s.backoffBase << (attempt - 1)
		log.Warn("delivery attempt failed, backing off",
			"channel", channel,
			"attempt", attempt,
			"backoff", backoff,
			"error", sendErr)
		if err := s.sleep(ctx, backoff); err != nil {
			// Context canceled mid-backoff. The pending record keeps the
			// attempt count; a redelivery resumes from here.
			return err
		}
	}
	return nil
}

// mirrorToConversation appends the delivered notification to the user's chat
// history so the next conversation turn can reference it, best effort. The
// conversation store already degrades reads on backend failure; a failed
// append here is logged and dropped the same way.
func (s *Service) mirrorToConversation(ctx context.Context, userID uuid.UUID, message string) {
	if s.conversations == nil || userID == uuid.Nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	history := s.conversations.Load(ctx, userID.String())
	history = append(history, domain.Message{
		Role:      domain.MessageRoleAssistant,
		Content:   message,
		Timestamp: time.Now().UTC(),
	})
	if err := s.conversations.Save(ctx, userID.String(), history, s.conversationTTL); err != nil {
		log.Warn("failed to mirror notification into conversation history",
			"user_id", userID,
			"error", err)
	}
}

// writeMarker stores the terminal-state marker, best effort.
func (s *Service) writeMarker(ctx context.Context, eventID uuid.UUID, status domain.NotificationStatus) {
	marker := dedupMarker{Status: status, HandledAt: time.Now().UTC()}
	if err := s.markers.PutJSON(ctx, markerKeyPrefix+eventID.String(), marker, s.markerTTL); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to write dedup marker",
			"event_id", eventID,
			"error", err)
	}
}

// sleepWithContext waits for d or until the context is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
