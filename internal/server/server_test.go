package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/app"
	"github.com/ternarybob/diario/internal/common"
)

func testApp(t *testing.T) *app.App {
	t.Helper()

	citiesDir := t.TempDir()
	cityJSON := `[{"id": "ba_salvador", "territoryId": "2927408", "spiderType": "doem",
		"config": {"type": "doem", "stateCityPath": "ba/salvador"}}]`
	require.NoError(t, os.WriteFile(filepath.Join(citiesDir, "ba.json"), []byte(cityJSON), 0644))

	cfg := common.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "diario.db")
	cfg.Cities.Dir = citiesDir
	cfg.Scheduler.Enabled = false

	application, err := app.New(cfg, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })
	return application
}

func TestRoutes(t *testing.T) {
	s := New(testApp(t))
	handler := s.withMiddleware(s.router)

	t.Run("index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"service":"diario"`)
	})

	t.Run("spiders", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/spiders", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ba_salvador")
	})

	t.Run("queue health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health/queue", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("analysis results", func(t *testing.T) {
		body := `{"jobId": "job-1", "text": "edital de abertura de concurso público"}`
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/analysis/results", strings.NewReader(body)))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
