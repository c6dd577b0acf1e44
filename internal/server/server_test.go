package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/executor"
	"github.com/opspilot/opspilot/internal/history"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/orchestrator"
	"github.com/opspilot/opspilot/internal/plugins"
	"github.com/opspilot/opspilot/internal/shell"
)

// completionsBackend serves a fixed interpretation in the
// chat-completions shape.
func completionsBackend(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": text}},
			},
		})
	}))
}

type testEnv struct {
	server  *Server
	cfgPath string
	store   *history.Store
}

func newTestEnv(t *testing.T, interpretation string) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("server tests rely on sh")
	}

	backend := completionsBackend(t, interpretation)
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"openai": {Endpoint: backend.URL, APIKey: "test-key", Model: "gpt-4o-mini"},
	}
	cfg.History.DBPath = filepath.Join(t.TempDir(), "history.db")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.SaveToPath(cfgPath))

	gateway, err := llm.NewGateway(cfg)
	require.NoError(t, err)

	store, err := history.Open(cfg.History.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := shell.NewRunner()
	planner := architect.NewWithBackends(nil, architect.NewProviderBackend(gateway, ""))
	orch := orchestrator.New(gateway, planner, executor.New(runner, true), runner, orchestrator.Options{
		History: store,
	})

	registry := plugins.NewRegistry(nil)

	srv := New(Options{
		Config:     config.NewHandle(cfg),
		ConfigPath: cfgPath,
		Orch:       orch,
		Gateway:    gateway,
		Registry:   registry,
		Store:      store,
	})
	return &testEnv{server: srv, cfgPath: cfgPath, store: store}
}

func postCommand(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCommandSimple(t *testing.T) {
	env := newTestEnv(t, "ls -la")
	h := env.server.Handler()

	rec := postCommand(t, h, `{"command": "list files"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orchestrator.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, orchestrator.TypeSimple, resp.Type)
	assert.Equal(t, "ls -la", resp.Interpretation)
}

func TestHandleCommandQuestion(t *testing.T) {
	env := newTestEnv(t, "ignored")
	h := env.server.Handler()

	rec := postCommand(t, h, `{"command": "_list files?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orchestrator.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.TypeQuestion, resp.Type)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "list files\n", resp.Result.Stdout)
}

func TestHandleCommandValidation(t *testing.T) {
	env := newTestEnv(t, "ignored")
	h := env.server.Handler()

	rec := postCommand(t, h, `{"command": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCommand(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProviders(t *testing.T) {
	env := newTestEnv(t, "ignored")
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Providers []llm.ProviderStatus `json:"providers"`
		Default   string               `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "openai", resp.Default)
	require.Len(t, resp.Providers, 1)
	assert.True(t, resp.Providers[0].Available)
}

func TestHandleReload(t *testing.T) {
	env := newTestEnv(t, "ignored")
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, "ignored")
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleHistory(t *testing.T) {
	env := newTestEnv(t, "ls -la")
	h := env.server.Handler()

	postCommand(t, h, `{"command": "list files"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []history.Entry `json:"entries"`
		Counts  map[string]int  `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "list files", resp.Entries[0].Command)
	assert.Equal(t, 1, resp.Counts["simple"])
}

func TestHandleMetrics(t *testing.T) {
	env := newTestEnv(t, "ls -la")
	h := env.server.Handler()

	postCommand(t, h, `{"command": "list files"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/llm", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LLMMetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Timestamp)
}

func TestCommandStream(t *testing.T) {
	env := newTestEnv(t, "echo streamed")
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/command/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(orchestrator.Request{Command: "_ping?"}))

	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "done", msg.Type)
	require.NotNil(t, msg.Envelope)
	assert.Equal(t, orchestrator.TypeQuestion, msg.Envelope.Type)
}
