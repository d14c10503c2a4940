package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/dashboard"
	"dealflow/internal/dataset"
	"dealflow/internal/events"
	"dealflow/internal/store"
	"dealflow/pkg/database"
	"dealflow/pkg/models"
)

func newProbeRouter(t *testing.T) (*gin.Engine, *probes) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "api.db")
	db, err := database.Open(database.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	st := store.New(db)
	p := &probes{
		db:     db,
		store:  st,
		hub:    events.NewHub(),
		runs:   &dashboard.RunManager{Store: st},
		dbPath: path,
	}
	r := gin.New()
	p.register(r)
	return r, p
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestReadyReportsDealCount(t *testing.T) {
	r, p := newProbeRouter(t)

	code, body := get(t, r, "/ready")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
	assert.EqualValues(t, 0, body["deals"])

	_, err := p.store.Import(testContext(t), &dataset.Dataset{Deals: []models.Deal{{ID: "1", CompanyName: "acme"}}})
	require.NoError(t, err)
	_, body = get(t, r, "/ready")
	assert.EqualValues(t, 1, body["deals"])
}

func TestReadyFailsWhenDatabaseClosed(t *testing.T) {
	r, p := newProbeRouter(t)
	require.NoError(t, p.db.Close())

	code, body := get(t, r, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body["status"])
}

func TestHealthAndDebug(t *testing.T) {
	r, p := newProbeRouter(t)

	code, _ := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)

	p.hub.Publish(events.RunEvent{RunID: "r1", Type: events.TypeRunStarted})
	code, body := get(t, r, "/debug")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, p.dbPath, body["db"])
	assert.Equal(t, false, body["backfill"])
	assert.NotContains(t, body, "current_run")
	require.Contains(t, body, "last_event")
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
