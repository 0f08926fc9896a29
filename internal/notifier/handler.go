package notifier

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/taskwire/taskwire/internal/api/shared"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/logger"
)

// TaskEventsRoute is the local route the sidecar invokes per delivered
// task event, as declared by GET /subscribe.
const TaskEventsRoute = "/events/task"

// Handler handles notification-related HTTP requests.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Handler")
	}
	return &Handler{
		service: service,
		logger:  logger.With(slog.String("component", "notifier_handler")),
	}
}

// HandleTaskEvents handles POST /events/task requests: the sidecar's
// delivery of one CloudEvents-wrapped envelope.
//
// Response semantics follow the consumer contract: 2xx acknowledges the
// event, including duplicates and permanently invalid envelopes that
// redelivery cannot fix, while 5xx asks the broker to redeliver because
// the ledger could not be consulted.
func (h *Handler) HandleTaskEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	env, err := events.DecodeCloudEvent(r.Body)
	if err != nil {
		// A wrapper we cannot even parse has no event ID to record against.
		// Acknowledge it so the broker stops redelivering, and log for
		// manual inspection.
		log.Error("discarding undecodable delivery", "error", err)
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "dropped"})
		return
	}

	if err := h.service.HandleEvent(r.Context(), env); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Event processing unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "success"})
}

// HandleHealth handles GET /healthz requests for liveness/readiness probes.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "notifier",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
