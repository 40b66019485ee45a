package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/retroboardhq/retroboard/internal/app"
	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/database/testutil"
	"github.com/retroboardhq/retroboard/internal/realtime"
	"github.com/retroboardhq/retroboard/internal/services"
	"github.com/retroboardhq/retroboard/pkg/response"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	retros, err := services.NewRetroService(db)
	require.NoError(t, err)
	items, err := services.NewItemService(db)
	require.NoError(t, err)
	participants, err := services.NewParticipantService(db)
	require.NoError(t, err)
	actions, err := services.NewActionItemService(db)
	require.NoError(t, err)

	hub := realtime.NewHub()
	engine := board.NewService(hub, participants, hub.Occupancy)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(db, cfg, Deps{
		Hub:          hub,
		Engine:       engine,
		Retros:       retros,
		Items:        items,
		Participants: participants,
		Actions:      actions,
	})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	data, ok := payload.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestMonitoringEndpoints(t *testing.T) {
	router := newTestRouter(t)

	health := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, health.Code)

	metrics := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "go_goroutines")
}

func TestWebsocketEntryRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/ws?sessionId=retro-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/ws?userId=user-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetroLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/retros", gin.H{
		"name":       "Sprint 42",
		"team_name":  "Payments",
		"created_by": "user-1",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	retroID := decodeData(t, created)["id"].(string)
	require.NotEmpty(t, retroID)

	fetched := doJSON(t, router, http.MethodGet, "/api/retros/"+retroID, nil)
	require.Equal(t, http.StatusOK, fetched.Code)
	require.Equal(t, "lobby", decodeData(t, fetched)["phase"])

	phased := doJSON(t, router, http.MethodPatch, "/api/retros/"+retroID+"/phase", gin.H{
		"phase":   "brainstorm",
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, phased.Code)
	require.Equal(t, "brainstorm", decodeData(t, phased)["phase"])

	badPhase := doJSON(t, router, http.MethodPatch, "/api/retros/"+retroID+"/phase", gin.H{
		"phase": "intermission",
	})
	require.Equal(t, http.StatusBadRequest, badPhase.Code)

	item := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/retros/%s/items", retroID), gin.H{
		"category":  "went-well",
		"text":      "shipped the migration",
		"author_id": "user-1",
	})
	require.Equal(t, http.StatusCreated, item.Code)
	itemID := decodeData(t, item)["id"].(string)

	listed := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/retros/%s/items", retroID), nil)
	require.Equal(t, http.StatusOK, listed.Code)

	deleted := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/retros/%s/items/%s", retroID, itemID), nil)
	require.Equal(t, http.StatusOK, deleted.Code)

	gone := doJSON(t, router, http.MethodDelete, "/api/retros/"+retroID, nil)
	require.Equal(t, http.StatusOK, gone.Code)

	missing := doJSON(t, router, http.MethodGet, "/api/retros/"+retroID, nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestActionItemCommitOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/retros", gin.H{"name": "Sprint 42"})
	require.Equal(t, http.StatusCreated, created.Code)
	retroID := decodeData(t, created)["id"].(string)

	// No drafts in session state yet: commit succeeds with an empty set.
	committed := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/retros/%s/action-items/commit", retroID), nil)
	require.Equal(t, http.StatusOK, committed.Code)

	listed := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/retros/%s/action-items", retroID), nil)
	require.Equal(t, http.StatusOK, listed.Code)
}
