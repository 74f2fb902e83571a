package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmcp/decomm/pkg/worklog"
)

func newTestServer(t *testing.T) (*Server, *worklog.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logs := worklog.NewRegistry()
	return NewServer(logs), logs
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestLogSnapshot(t *testing.T) {
	server, logs := newTestServer(t)
	log := logs.Get("wf-1")
	log.Info("discovery started")
	log.AppendTable([]string{"File"}, [][]string{{"schema.sql"}}, "Hits", nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/wf-1/log", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []worklog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, worklog.KindText, entries[0].Kind)
	assert.Equal(t, worklog.KindTable, entries[1].Kind)
}

func TestLogSnapshot_UnknownWorkflow(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/nope/log", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummary(t *testing.T) {
	server, logs := newTestServer(t)
	log := logs.Get("wf-2")
	log.Info("one")
	log.Warning("two")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows/wf-2/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary worklog.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.CountsByKind[worklog.KindText])
}

func TestListWorkflows(t *testing.T) {
	server, logs := newTestServer(t)
	logs.Get("wf-a")
	logs.Get("wf-b")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflows", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		WorkflowIDs []string `json:"workflow_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"wf-a", "wf-b"}, body.WorkflowIDs)
}
