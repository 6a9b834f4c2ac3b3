package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/godual/tool"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ============================================================
// Config
// ============================================================

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, transportHTTP, cfg.Transport)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("GODUAL_ADDR", ":9000")
	t.Setenv("GODUAL_TRANSPORT", "stdio")
	t.Setenv("GODUAL_LOG_LEVEL", "debug")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, transportStdio, cfg.Transport)

	cfg, err = loadConfig([]string{"--addr", ":7000", "--transport", "http"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, transportHTTP, cfg.Transport)
	assert.Equal(t, "debug", cfg.LogLevel)

	cfg, err = loadConfig([]string{"--addr=:6000", "--max-body-bytes=2048"})
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Addr)
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig([]string{"--transport", "grpc"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"--max-body-bytes", "0"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"--log-level", "loud"})
	assert.Error(t, err)

	_, err = loadConfig([]string{"--port", "80"})
	assert.Error(t, err)

	t.Setenv("GODUAL_MAX_BODY_BYTES", "lots")
	_, err = loadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

// ============================================================
// HTTP
// ============================================================

func postTool(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, tool.ToolResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tool", strings.NewReader(body)))
	var resp tool.ToolResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHTTP_Tool(t *testing.T) {
	h := newHTTPHandler(quietLogger(), 1<<20)
	rec, resp := postTool(t, h, `{"tool":"eval","params":{"expr":"x*x*x","at":2,"mode":"lazy"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, resp.Error)
	assert.Equal(t, "(8, 12)", resp.String)
}

func TestHTTP_ToolErrorIsReportedInBody(t *testing.T) {
	h := newHTTPHandler(quietLogger(), 1<<20)
	rec, resp := postTool(t, h, `{"tool":"eval","params":{"expr":"tan(x)","at":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, resp.Error, "tan")
}

func TestHTTP_BadRequests(t *testing.T) {
	h := newHTTPHandler(quietLogger(), 64)
	cases := map[string]string{
		"malformed":     `{"tool":`,
		"unknown field": `{"tool":"eval","extra":1}`,
		"trailing data": `{"tool":"eval"} {"tool":"eval"}`,
		"too large":     `{"tool":"eval","params":{"expr":"` + strings.Repeat("x+", 64) + `x"}}`,
	}
	for name, body := range cases {
		rec, _ := postTool(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tool", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTP_SchemaAndHealth(t *testing.T) {
	h := newHTTPHandler(quietLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, tool.MCPToolSpec(), rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, serverConfig{Addr: "127.0.0.1:0", Transport: transportHTTP, MaxBodyBytes: 1 << 20}, quietLogger())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

// ============================================================
// MCP
// ============================================================

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := newMCPServer(quietLogger()).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func decode[T any](t *testing.T, value any) T {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestMCP_ListTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{"dual_eval", "dual_check"}, names)
}

func TestMCP_Eval(t *testing.T) {
	cs := connect(t)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "dual_eval",
		Arguments: map[string]any{"expr": "x*y", "at": 3, "vars": map[string]any{"y": 5}},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out := decode[evalOutput](t, res.StructuredContent)
	assert.Equal(t, "(15, 5)", out.Dual)
	assert.Equal(t, 15.0, out.Value)
	assert.Equal(t, 5.0, out.Derivative)
}

func TestMCP_EvalErrors(t *testing.T) {
	cs := connect(t)
	for _, args := range []map[string]any{
		{"expr": "tan(x)", "at": 1},
		{"expr": "x", "at": 1, "mode": "symbolic"},
		{"expr": "1 / x", "at": 0},
	} {
		res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "dual_eval", Arguments: args})
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}
}

func TestMCP_Check(t *testing.T) {
	cs := connect(t)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "dual_check",
		Arguments: map[string]any{"expr": "sin(x*x)", "at": 5.32, "tol": 1e-5},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out := decode[checkOutput](t, res.StructuredContent)
	assert.True(t, out.Pass)
	assert.InDelta(t, out.Derivative, out.FiniteDifference, 1e-5)
}
