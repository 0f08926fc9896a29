package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/store"
)

// memTemplateStore is an in-memory TemplateStore for handler tests.
type memTemplateStore struct {
	templates map[uuid.UUID]*domain.RecurringTemplate
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{templates: make(map[uuid.UUID]*domain.RecurringTemplate)}
}

func (s *memTemplateStore) Create(ctx context.Context, tpl *domain.RecurringTemplate) error {
	snapshot := *tpl
	s.templates[tpl.TemplateID] = &snapshot
	return nil
}

func (s *memTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return nil, store.ErrTemplateNotFound
	}
	snapshot := *tpl
	return &snapshot, nil
}

func (s *memTemplateStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.RecurringTemplate, error) {
	var out []*domain.RecurringTemplate
	for _, tpl := range s.templates {
		if tpl.OwnerID == ownerID {
			snapshot := *tpl
			out = append(out, &snapshot)
		}
	}
	return out, nil
}

func (s *memTemplateStore) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error) {
	return nil, nil
}

func (s *memTemplateStore) AdvanceNextOccurrence(ctx context.Context, id uuid.UUID, from, to time.Time) error {
	tpl, ok := s.templates[id]
	if !ok {
		return store.ErrTemplateNotFound
	}
	if tpl.NextOccurrence.Equal(from) {
		tpl.NextOccurrence = to
	}
	return nil
}

func (s *memTemplateStore) SetEnabled(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, enabled bool) error {
	tpl, ok := s.templates[id]
	if !ok || tpl.OwnerID != ownerID {
		return store.ErrTemplateNotFound
	}
	tpl.Enabled = enabled
	return nil
}

func newHandlerFixture() (*api.TemplateHandler, *memTemplateStore) {
	templates := newMemTemplateStore()
	handler := api.NewTemplateHandler(templates, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return handler, templates
}

func authedRequest(method, target string, body io.Reader, ownerID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.ContextWithOwnerID(req.Context(), ownerID))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateTemplate(t *testing.T) {
	t.Run("creates and returns the template", func(t *testing.T) {
		handler, templates := newHandlerFixture()
		ownerID := uuid.New()

		body := `{
			"title": "Water the plants",
			"description": "Kitchen and balcony",
			"recurrence_rule": {"kind": "daily"},
			"first_occurrence": "2026-04-01T09:00:00Z"
		}`
		rec := httptest.NewRecorder()
		handler.CreateTemplate(rec, authedRequest(http.MethodPost, "/templates", strings.NewReader(body), ownerID))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp api.TemplateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Water the plants", resp.Title)
		assert.Equal(t, ownerID.String(), resp.OwnerID)
		assert.True(t, resp.Enabled)
		assert.Len(t, templates.templates, 1)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		handler, _ := newHandlerFixture()
		rec := httptest.NewRecorder()
		handler.CreateTemplate(rec, httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler, _ := newHandlerFixture()
		rec := httptest.NewRecorder()
		handler.CreateTemplate(rec, authedRequest(http.MethodPost, "/templates", strings.NewReader("{not json"), uuid.New()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		handler, _ := newHandlerFixture()
		body := `{"recurrence_rule": {"kind": "daily"}, "first_occurrence": "2026-04-01T09:00:00Z"}`
		rec := httptest.NewRecorder()
		handler.CreateTemplate(rec, authedRequest(http.MethodPost, "/templates", strings.NewReader(body), uuid.New()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Title")
	})

	t.Run("rejects invalid recurrence rule", func(t *testing.T) {
		handler, _ := newHandlerFixture()
		body := `{
			"title": "Broken",
			"recurrence_rule": {"kind": "weekly"},
			"first_occurrence": "2026-04-01T09:00:00Z"
		}`
		rec := httptest.NewRecorder()
		handler.CreateTemplate(rec, authedRequest(http.MethodPost, "/templates", strings.NewReader(body), uuid.New()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTemplates(t *testing.T) {
	handler, templates := newHandlerFixture()
	ownerID := uuid.New()

	mine, err := domain.NewRecurringTemplate(ownerID, "Mine", "",
		domain.RecurrenceRule{Kind: domain.RecurrenceDaily}, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, templates.Create(context.Background(), mine))

	other, err := domain.NewRecurringTemplate(uuid.New(), "Someone else's", "",
		domain.RecurrenceRule{Kind: domain.RecurrenceDaily}, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, templates.Create(context.Background(), other))

	rec := httptest.NewRecorder()
	handler.ListTemplates(rec, authedRequest(http.MethodGet, "/templates", nil, ownerID))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []api.TemplateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Mine", resp[0].Title)
}

func TestGetTemplate(t *testing.T) {
	handler, templates := newHandlerFixture()
	ownerID := uuid.New()

	tpl, err := domain.NewRecurringTemplate(ownerID, "Mine", "",
		domain.RecurrenceRule{Kind: domain.RecurrenceDaily}, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, templates.Create(context.Background(), tpl))

	t.Run("returns an owned template", func(t *testing.T) {
		req := withURLParam(authedRequest(http.MethodGet, "/templates/"+tpl.TemplateID.String(), nil, ownerID),
			"id", tpl.TemplateID.String())
		rec := httptest.NewRecorder()
		handler.GetTemplate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp api.TemplateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tpl.TemplateID.String(), resp.TemplateID)
	})

	t.Run("hides other owners' templates as not found", func(t *testing.T) {
		req := withURLParam(authedRequest(http.MethodGet, "/templates/"+tpl.TemplateID.String(), nil, uuid.New()),
			"id", tpl.TemplateID.String())
		rec := httptest.NewRecorder()
		handler.GetTemplate(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects malformed IDs", func(t *testing.T) {
		req := withURLParam(authedRequest(http.MethodGet, "/templates/xyz", nil, ownerID), "id", "xyz")
		rec := httptest.NewRecorder()
		handler.GetTemplate(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEnableDisableTemplate(t *testing.T) {
	handler, templates := newHandlerFixture()
	ownerID := uuid.New()

	tpl, err := domain.NewRecurringTemplate(ownerID, "Mine", "",
		domain.RecurrenceRule{Kind: domain.RecurrenceDaily}, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, templates.Create(context.Background(), tpl))

	t.Run("disable then enable", func(t *testing.T) {
		req := withURLParam(authedRequest(http.MethodPost, "/templates/"+tpl.TemplateID.String()+"/disable", nil, ownerID),
			"id", tpl.TemplateID.String())
		rec := httptest.NewRecorder()
		handler.DisableTemplate(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, templates.templates[tpl.TemplateID].Enabled)

		req = withURLParam(authedRequest(http.MethodPost, "/templates/"+tpl.TemplateID.String()+"/enable", nil, ownerID),
			"id", tpl.TemplateID.String())
		rec = httptest.NewRecorder()
		handler.EnableTemplate(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, templates.templates[tpl.TemplateID].Enabled)
	})

	t.Run("another owner cannot toggle it", func(t *testing.T) {
		req := withURLParam(authedRequest(http.MethodPost, "/templates/"+tpl.TemplateID.String()+"/disable", nil, uuid.New()),
			"id", tpl.TemplateID.String())
		rec := httptest.NewRecorder()
		handler.DisableTemplate(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.True(t, templates.templates[tpl.TemplateID].Enabled)
	})

	t.Run("unknown template is not found", func(t *testing.T) {
		missing := uuid.New().String()
		req := withURLParam(authedRequest(http.MethodPost, "/templates/"+missing+"/enable", nil, ownerID),
			"id", missing)
		rec := httptest.NewRecorder()
		handler.EnableTemplate(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
