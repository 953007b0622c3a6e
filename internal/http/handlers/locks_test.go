package handlers_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/http/handlers"
	"github.com/tqa24/oneclick-subtitles-generator-sub003/internal/locks"
)

func setupLocksRouter(registry *locks.Registry) *chi.Mux {
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewLocksHandler(registry).Register(api)
	return router
}

func newTestRegistry() *locks.Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return locks.NewRegistry(logger, time.Minute, time.Minute, time.Millisecond)
}

func TestLocksHandler_ListLocks(t *testing.T) {
	registry := newTestRegistry()
	router := setupLocksRouter(registry)

	require.True(t, registry.Acquire("vid1", "orchestrator", nil))
	require.True(t, registry.Acquire("vid2", "orchestrator", nil))

	req := httptest.NewRequest("GET", "/api/v1/locks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body handlers.ListLocksBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Locks, 2)
	assert.Equal(t, 0, body.Stale)
}

func TestLocksHandler_ReleaseLock(t *testing.T) {
	t.Run("releases a held lock", func(t *testing.T) {
		registry := newTestRegistry()
		router := setupLocksRouter(registry)

		cleaned := false
		require.True(t, registry.Acquire("vid1", "orchestrator", func() error {
			cleaned = true
			return nil
		}))

		req := httptest.NewRequest("DELETE", "/api/v1/locks/vid1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, registry.IsActive("vid1"))
		assert.True(t, cleaned, "force-release must run the cleanup callback")
	})

	t.Run("unheld lock returns 404", func(t *testing.T) {
		router := setupLocksRouter(newTestRegistry())

		req := httptest.NewRequest("DELETE", "/api/v1/locks/vid1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLocksHandler_ReleaseAll(t *testing.T) {
	registry := newTestRegistry()
	router := setupLocksRouter(registry)

	require.True(t, registry.Acquire("vid1", "orchestrator", nil))
	require.True(t, registry.Acquire("vid2", "orchestrator", nil))
	require.True(t, registry.Acquire("vid3", "orchestrator", nil))

	req := httptest.NewRequest("DELETE", "/api/v1/locks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body handlers.ReleaseAllBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Released)
	assert.Empty(t, registry.ListAll())
}
