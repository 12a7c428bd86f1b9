package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeflow/kernel/agent"
	"github.com/forgeflow/kernel/config"
	"github.com/forgeflow/kernel/monitor"
	"github.com/forgeflow/kernel/realtime"
	"github.com/forgeflow/kernel/task"
)

const allowedOrigin = "http://localhost:3000"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	available bool
	result    string
	err       error
}

func (g *stubGateway) Available() bool { return g.available }

func (g *stubGateway) Process(ctx context.Context, taskID, description string) (string, error) {
	return g.result, g.err
}

func newTestServer(gw agent.Gateway) *Server {
	store := task.NewStore()
	registry := realtime.NewRegistry()
	mon := monitor.New(config.MonitorConfig{Enabled: false})
	directory := agent.NewDirectory(gw)
	orchestrator := task.NewOrchestrator(store, registry, gw, directory, mon)

	cfg := config.ServerConfig{
		HTTPAddr:     ":0",
		AllowOrigins: []string{allowedOrigin},
		Timeout:      config.Duration(5 * time.Second),
	}
	return New(cfg, store, orchestrator, directory, gw, registry, mon)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	w := doJSON(t, s.Router(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["api_ready"])
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubGateway{available: false})

	w := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCreateTaskCompleted(t *testing.T) {
	s := newTestServer(&stubGateway{available: true, result: "pong"})

	w := doJSON(t, s.Router(), http.MethodPost, "/tasks", map[string]any{
		"description": "ping",
		"agent_id":    "assistant",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var view task.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, task.StatusCompleted, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, "pong", *view.Result)
	assert.Equal(t, 1, view.Priority)
	assert.Equal(t, "api", view.Metadata.Source)
	assert.NotEmpty(t, view.Metadata.ClientInfo)
}

func TestCreateTaskUnavailable(t *testing.T) {
	s := newTestServer(&stubGateway{available: false})
	router := s.Router()

	w := doJSON(t, router, http.MethodPost, "/tasks", map[string]any{"description": "ping"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])

	// 拒绝发生在任务创建之前
	w = doJSON(t, router, http.MethodGet, "/tasks", nil)
	var list struct {
		Tasks []task.View `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Tasks)
}

func TestCreateTaskBadBody(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasksOrder(t *testing.T) {
	s := newTestServer(&stubGateway{available: true, result: "done"})
	router := s.Router()

	doJSON(t, router, http.MethodPost, "/tasks", map[string]any{"description": "first"})
	doJSON(t, router, http.MethodPost, "/tasks", map[string]any{"description": "second"})

	w := doJSON(t, router, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Tasks []task.View `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, "first", list.Tasks[0].Description)
	assert.Equal(t, "second", list.Tasks[1].Description)
}

func TestListAgents(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	w := doJSON(t, s.Router(), http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Agents []agent.Descriptor `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Agents, 3)
	assert.Equal(t, "assistant", body.Agents[0].ID)
	assert.Equal(t, "active", body.Agents[0].Status)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(&stubGateway{available: true, result: "ok"})
	router := s.Router()

	doJSON(t, router, http.MethodPost, "/tasks", map[string]any{"description": "ping"})

	w := doJSON(t, router, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.TasksCompleted)
	assert.Equal(t, int64(0), snap.TasksFailed)
}

func TestCORSAllowedOrigin(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", allowedOrigin)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, allowedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&stubGateway{available: true})

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", allowedOrigin)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allowedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
}
