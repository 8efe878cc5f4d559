package mcpbridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/envelope"
	"github.com/jdziat/funcgate/pkg/gateway"
	"github.com/jdziat/funcgate/pkg/registry"
)

func newGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	r := registry.New()
	r.MustRegister("version", func() []any { return []any{500, 4000, "15 Mar 2024"} })
	r.MustRegister("symbol_info", func(symbol string, digits int) map[string]any {
		return map[string]any{"name": symbol, "digits": digits}
	}, registry.WithParams("symbol", "digits"), registry.WithDescription("Symbol properties."))
	r.MustRegister("fail", func() error { return errors.New("terminal not connected") })
	r.MustRegister("transport", func(ctx context.Context) string {
		info, _ := callctx.CallFromContext(ctx)
		return info.Transport
	})
	require.NoError(t, r.Init(context.Background()))
	return gateway.New(r)
}

func connect(t *testing.T, gw *gateway.Gateway, opts ...Option) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer(gw, opts...).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, newGateway(t))

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	byName := map[string]*mcp.Tool{}
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	require.Len(t, byName, 4)
	assert.Equal(t, "Symbol properties. Parameters: symbol, digits.", byName["symbol_info"].Description)
	assert.Equal(t, "Call version.", byName["version"].Description)
}

func TestCallTool(t *testing.T) {
	session := connect(t, newGateway(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		want    string
		isError bool
	}{
		{"no arguments", "version", map[string]any{}, `{"result":[500,4000,"15 Mar 2024"]}`, false},
		{"named", "symbol_info", map[string]any{"symbol": "EURUSD", "digits": 5}, `{"result":{"digits":5,"name":"EURUSD"}}`, false},
		{"execution error", "fail", map[string]any{}, `{"error":"terminal not connected"}`, true},
		{"transport", "transport", map[string]any{}, `{"result":"mcp"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			require.NoError(t, err)
			assert.Equal(t, tt.isError, res.IsError)
			assert.JSONEq(t, tt.want, resultText(t, res))
		})
	}
}

type recordingCaller struct {
	names []string
}

func (c *recordingCaller) Call(ctx context.Context, name string, params core.ParamSet) envelope.Envelope {
	c.names = append(c.names, name)
	return envelope.Failure("server busy")
}

func TestCallTool_WithCaller(t *testing.T) {
	caller := &recordingCaller{}
	session := connect(t, newGateway(t), WithCaller(caller))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "version", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"server busy"}`, resultText(t, res))
	assert.Equal(t, []string{"version"}, caller.names)
}

func TestCallTool_InvalidArguments(t *testing.T) {
	session := connect(t, newGateway(t))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "symbol_info",
		Arguments: map[string]any{"bogus": 1},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Invalid arguments: ")
}

func TestParamsFor(t *testing.T) {
	p, err := paramsFor(nil)
	require.NoError(t, err)
	assert.Equal(t, core.ConventionEmpty, p.Convention())

	p, err = paramsFor(map[string]any{"count": float64(10), "ratio": 0.5})
	require.NoError(t, err)
	assert.Equal(t, core.ConventionNamed, p.Convention())
	assert.Equal(t, int64(10), p.Kwargs()["count"])
	assert.Equal(t, 0.5, p.Kwargs()["ratio"])
}

func TestHandler_ServesStreamableHTTP(t *testing.T) {
	srv := httptest.NewServer(Handler(newGateway(t)))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
