// Package api provides HTTP handlers for the API.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/api/shared"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/store"
)

// CreateTemplateRequest represents the request body for creating a recurring
// template.
type CreateTemplateRequest struct {
	Title           string                `json:"title"           validate:"required,max=500"`
	Description     string                `json:"description"     validate:"max=5000"`
	Rule            domain.RecurrenceRule `json:"recurrence_rule" validate:"required"`
	FirstOccurrence time.Time             `json:"first_occurrence" validate:"required"`
}

// TemplateResponse represents the response data for a recurring template.
type TemplateResponse struct {
	TemplateID     string                `json:"template_id"`
	OwnerID        string                `json:"owner_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	Rule           domain.RecurrenceRule `json:"recurrence_rule"`
	NextOccurrence time.Time             `json:"next_occurrence"`
	Enabled        bool                  `json:"enabled"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TemplateHandler handles recurring-template HTTP requests.
type TemplateHandler struct {
	templates store.TemplateStore
	validator *validator.Validate
	logger    *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates store.TemplateStore, log *slog.Logger) *TemplateHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TemplateHandler")
	}
	return &TemplateHandler{
		templates: templates,
		validator: validator.New(),
		logger:    log.With(slog.String("component", "template_handler")),
	}
}

// CreateTemplate handles POST /templates requests.
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := middleware.GetOwnerID(r)
	if !ok || ownerID == uuid.Nil {
		log.Warn("owner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	tpl, err := domain.NewRecurringTemplate(ownerID, req.Title, req.Description, req.Rule, req.FirstOccurrence)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.templates.Create(r.Context(), tpl); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("created recurring template",
		slog.String("template_id", tpl.TemplateID.String()),
		slog.String("owner_id", ownerID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, templateToResponse(tpl))
}

// ListTemplates handles GET /templates requests. It returns all of the
// authenticated owner's templates, disabled ones included.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := middleware.GetOwnerID(r)
	if !ok || ownerID == uuid.Nil {
		log.Warn("owner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	templates, err := h.templates.ListByOwner(r.Context(), ownerID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Failed to list templates", err)
		return
	}

	responses := make([]TemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		responses = append(responses, templateToResponse(tpl))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetTemplate handles GET /templates/{id} requests.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	h.withOwnedTemplate(w, r, func(tpl *domain.RecurringTemplate) {
		shared.RespondWithJSON(w, r, http.StatusOK, templateToResponse(tpl))
	})
}

// EnableTemplate handles POST /templates/{id}/enable requests.
func (h *TemplateHandler) EnableTemplate(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableTemplate handles POST /templates/{id}/disable requests. Disabling is
// the only form of deletion exposed by the API.
func (h *TemplateHandler) DisableTemplate(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *TemplateHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := middleware.GetOwnerID(r)
	if !ok || ownerID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	templateID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid template ID format")
		return
	}

	if err := h.templates.SetEnabled(r.Context(), templateID, ownerID, enabled); err != nil {
		// An existing template owned by someone else reads as not found,
		// so ownership is never leaked through the status code.
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("updated template enabled state",
		slog.String("template_id", templateID.String()),
		slog.Bool("enabled", enabled))
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"template_id": templateID.String(),
		"enabled":     enabled,
	})
}

// withOwnedTemplate loads the template named in the URL, enforces ownership,
// and hands it to fn.
func (h *TemplateHandler) withOwnedTemplate(
	w http.ResponseWriter,
	r *http.Request,
	fn func(tpl *domain.RecurringTemplate),
) {
	ownerID, ok := middleware.GetOwnerID(r)
	if !ok || ownerID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	templateID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid template ID format")
		return
	}

	tpl, err := h.templates.GetByID(r.Context(), templateID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if tpl.OwnerID != ownerID {
		// Same shape as a genuine miss.
		notFound := fmt.Errorf("%w: owner mismatch", store.ErrTemplateNotFound)
		shared.RespondWithErrorAndLog(w, r, http.StatusNotFound, GetSafeErrorMessage(notFound), notFound)
		return
	}

	fn(tpl)
}

func templateToResponse(tpl *domain.RecurringTemplate) TemplateResponse {
	return TemplateResponse{
		TemplateID:     tpl.TemplateID.String(),
		OwnerID:        tpl.OwnerID.String(),
		Title:          tpl.Title,
		Description:    tpl.Description,
		Rule:           tpl.Rule,
		NextOccurrence: tpl.NextOccurrence,
		Enabled:        tpl.Enabled,
		CreatedAt:      tpl.CreatedAt,
		UpdatedAt:      tpl.UpdatedAt,
	}
}
