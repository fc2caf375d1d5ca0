package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/monitor"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHandlerReadsMonitor(t *testing.T) {
	m := New(10)
	m.EndCall(m.StartCall("/books/list", "GET"), 200, 12)
	m.EndCall(m.StartCall("/books/9/info", "GET"), 404, 0)

	h := &Handler{Mon: m}

	w := serve(t, h, http.MethodGet, "/monitor/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 1, stats.ErrorCalls)

	w = serve(t, h, http.MethodGet, "/monitor/errors?limit=5")
	var errs []CallLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "/books/9/info", errs[0].URL)

	w = serve(t, h, http.MethodGet, "/monitor/health")
	var health HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, Down, health.Status)

	w = serve(t, h, http.MethodGet, "/monitor/export")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), `"logs"`)
}

func TestHandlerClearIsGated(t *testing.T) {
	m := New(10)
	m.StartCall("/x", "GET")

	w := serve(t, &Handler{Mon: m}, http.MethodDelete, "/monitor/logs")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, m.Logs(), 1)

	cleared := false
	w = serve(t, &Handler{Mon: m, AllowClear: true, OnClear: func() { cleared = true }}, http.MethodDelete, "/monitor/logs")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, m.Logs())
	assert.True(t, cleared)
}
