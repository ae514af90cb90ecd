package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/handlers"
	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/services"
)

type testServer struct {
	registry *services.Registry
	server   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := scenario.LoadBuiltin()
	require.NoError(t, err)

	logger := zap.NewNop()
	metrics := services.NewMetrics()
	registry := services.NewRegistry(catalog, metrics, logger, services.RegistryOptions{})
	t.Cleanup(registry.Stop)

	sh := handlers.NewSessionHandlers(registry, catalog, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", sh.CreateSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/join", sh.JoinSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/leave", sh.LeaveSession)
	mux.HandleFunc("GET /api/sessions/{sessionId}", sh.GetSession)
	mux.HandleFunc("GET /api/scenarios", sh.ListScenarios)
	mux.HandleFunc("GET /api/metrics", handlers.HandleMetrics(metrics))
	mux.HandleFunc("GET /api/health", handlers.HandleHealth(metrics, registry))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{registry: registry, server: server}
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/sessions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.NotEmpty(t, body["sessionId"])
	assert.Empty(t, body["robotId"])

	_, ok := ts.registry.Get(body["sessionId"])
	assert.True(t, ok)
}

func TestCreateSoloSession(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/sessions", map[string]any{"solo": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.NotEmpty(t, body["robotId"])

	entry, ok := ts.registry.Get(body["sessionId"])
	require.True(t, ok)
	p, found := entry.Machine.Snapshot().Participant(body["robotId"])
	require.True(t, found)
	assert.True(t, p.IsRobot)
}

func TestJoinSession(t *testing.T) {
	ts := newTestServer(t)
	created := decode[map[string]string](t, ts.post(t, "/api/sessions", map[string]any{}))
	sessionID := created["sessionId"]

	t.Run("valid join", func(t *testing.T) {
		resp := ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "Alice"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.NotEmpty(t, body["participantId"])
	})

	t.Run("invalid name rejected", func(t *testing.T) {
		resp := ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "<script>"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp := ts.post(t, "/api/sessions/"+uuid.NewString()+"/join", map[string]string{"displayName": "Bob"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed session id", func(t *testing.T) {
		resp := ts.post(t, "/api/sessions/not-a-uuid/join", map[string]string{"displayName": "Bob"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("roster cap", func(t *testing.T) {
		for _, name := range []string{"Bob", "Carol", "Dave"} {
			resp := ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": name})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}
		resp := ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "Eve"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestLeaveSession(t *testing.T) {
	ts := newTestServer(t)
	created := decode[map[string]string](t, ts.post(t, "/api/sessions", map[string]any{}))
	sessionID := created["sessionId"]

	join := decode[map[string]string](t, ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "Alice"}))
	ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "Bob"}).Body.Close()

	resp := ts.post(t, "/api/sessions/"+sessionID+"/leave", map[string]string{"participantId": join["participantId"]})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	entry, ok := ts.registry.Get(sessionID)
	require.True(t, ok)
	_, found := entry.Machine.Snapshot().Participant(join["participantId"])
	assert.False(t, found)
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)
	created := decode[map[string]string](t, ts.post(t, "/api/sessions", map[string]any{}))
	sessionID := created["sessionId"]
	ts.post(t, "/api/sessions/"+sessionID+"/join", map[string]string{"displayName": "Alice"}).Body.Close()

	resp := ts.get(t, "/api/sessions/"+sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[models.SessionState](t, resp)
	assert.Equal(t, sessionID, snap.ID)
	assert.Equal(t, models.PhaseSetup, snap.CurrentPhase)
	assert.Len(t, snap.Participants, 1)
}

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/scenarios")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	scenarios := decode[[]scenario.Scenario](t, resp)
	assert.NotEmpty(t, scenarios)
	for _, s := range scenarios {
		assert.NotEmpty(t, s.ID)
		assert.GreaterOrEqual(t, len(s.Roles), 2)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.post(t, "/api/sessions", map[string]any{}).Body.Close()

	resp := ts.get(t, "/api/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metrics := decode[services.MetricsSnapshot](t, resp)
	assert.EqualValues(t, 1, metrics.ActiveSessions)

	resp = ts.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["active_sessions"])
}
