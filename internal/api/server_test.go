package api

import (
	"Go2NetIngest/internal/ingest"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProgress ingest.ProgressSnapshot

func (p fixedProgress) Snapshot() ingest.ProgressSnapshot {
	return ingest.ProgressSnapshot(p)
}

func TestProgressHandler(t *testing.T) {
	r := NewRouter(fixedProgress{
		RunID:     "5b2f0a40-1f7e-4c55-9d43-2c1c8f1d7e11",
		BatchSize: 50000,
		Committed: 120000,
		Commits:   3,
		Running:   true,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "5b2f0a40-1f7e-4c55-9d43-2c1c8f1d7e11", body["run_id"])
	assert.Equal(t, float64(120000), body["committed"])
	assert.Equal(t, float64(3), body["commits"])
	assert.Equal(t, float64(50000), body["batch_size"])
	assert.Equal(t, true, body["running"])
}

func TestProgressFromController(t *testing.T) {
	var p ingest.Progress
	r := NewRouter(&p)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":false`)
}

func TestHealthzAndMetrics(t *testing.T) {
	r := NewRouter(fixedProgress{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMethodNotAllowed(t *testing.T) {
	r := NewRouter(fixedProgress{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/progress", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
