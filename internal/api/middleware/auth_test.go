package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/service/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthMiddleware(t *testing.T) *middleware.AuthMiddleware {
	t.Helper()
	verifier, err := identity.NewVerifier(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	return middleware.NewAuthMiddleware(verifier)
}

// echoOwner writes the owner ID the middleware put in context.
func echoOwner(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.GetOwnerID(r)
		require.True(t, ok)
		_, _ = w.Write([]byte(ownerID.String()))
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("passes valid bearer tokens through with owner context", func(t *testing.T) {
		m := newAuthMiddleware(t)
		ownerID := uuid.New()
		token, err := identity.SignToken([]byte(testSecret), ownerID, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/templates", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		m.Authenticate(echoOwner(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ownerID.String(), rec.Body.String())
	})

	t.Run("rejects missing header", func(t *testing.T) {
		m := newAuthMiddleware(t)
		rec := httptest.NewRecorder()
		m.Authenticate(echoOwner(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed header", func(t *testing.T) {
		m := newAuthMiddleware(t)
		req := httptest.NewRequest(http.MethodGet, "/templates", nil)
		req.Header.Set("Authorization", "Token abc123")
		rec := httptest.NewRecorder()
		m.Authenticate(echoOwner(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		m := newAuthMiddleware(t)
		req := httptest.NewRequest(http.MethodGet, "/templates", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		m.Authenticate(echoOwner(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid token")
	})

	t.Run("reports expired tokens distinctly", func(t *testing.T) {
		m := newAuthMiddleware(t)
		token, err := identity.SignToken([]byte(testSecret), uuid.New(), -3*time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/templates", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		m.Authenticate(echoOwner(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "expired")
	})
}

func TestGetOwnerID(t *testing.T) {
	t.Run("absent without the middleware", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, ok := middleware.GetOwnerID(req)
		assert.False(t, ok)
	})

	t.Run("round-trips through context", func(t *testing.T) {
		ownerID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.ContextWithOwnerID(req.Context(), ownerID))

		got, ok := middleware.GetOwnerID(req)
		assert.True(t, ok)
		assert.Equal(t, ownerID, got)
	})
}
