package scheduler

import (
	"log/slog"
	"net/http"

	"github.com/taskwire/taskwire/internal/api/shared"
	"github.com/taskwire/taskwire/internal/platform/logger"
)

// TriggerRoute is the path the sidecar's timer binding invokes on each
// scheduling interval.
const TriggerRoute = "/trigger/generate"

// Handler exposes the generator over HTTP for the sidecar's timer binding.
type Handler struct {
	generator *Generator
	logger    *slog.Logger
}

// NewHandler creates a Handler around the given generator.
func NewHandler(generator *Generator, log *slog.Logger) *Handler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for scheduler Handler")
	}
	return &Handler{
		generator: generator,
		logger:    log.With(slog.String("component", "scheduler_handler")),
	}
}

// HandleTrigger handles POST /trigger/generate requests. A non-2xx response
// tells the sidecar the tick failed outright; it will fire again on the next
// interval, and the generator's duplicate tolerance makes the rerun safe.
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	result, err := h.generator.RunTick(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Generation tick failed", err)
		return
	}

	log.Debug("generation tick served",
		"templates_due", result.TemplatesDue,
		"generated", result.Generated)
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// HandleHealth handles GET /healthz requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}
