// Package mcpbridge exposes gateway functions as MCP tools.
//
// Each registered function becomes a tool that takes named arguments. The
// tool result carries the JSON envelope as text, so MCP clients see exactly
// what HTTP clients see.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/envelope"
	"github.com/jdziat/funcgate/pkg/gateway"
)

const (
	serverName    = "funcgate"
	serverVersion = "1.0.0"
)

// Caller runs one call and returns its envelope. A *gateway.Gateway is a
// Caller; the HTTP server provides one that applies its concurrency and
// timeout limits.
type Caller interface {
	Call(ctx context.Context, name string, params core.ParamSet) envelope.Envelope
}

// Option configures the MCP server.
type Option func(*config)

type config struct {
	caller Caller
}

// WithCaller routes tool calls through c instead of the gateway.
func WithCaller(c Caller) Option {
	return func(cfg *config) {
		cfg.caller = c
	}
}

// NewServer creates an MCP server with one tool per gateway function.
func NewServer(gw *gateway.Gateway, opts ...Option) *mcp.Server {
	cfg := &config{caller: gw}
	for _, opt := range opts {
		opt(cfg)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	for _, name := range gw.Functions() {
		mcp.AddTool(server, toolFor(gw, name), callHandler(cfg.caller, name))
	}
	return server
}

// Handler serves the MCP server over streamable HTTP.
func Handler(gw *gateway.Gateway, opts ...Option) http.Handler {
	server := NewServer(gw, opts...)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func toolFor(gw *gateway.Gateway, name string) *mcp.Tool {
	desc, params, _ := gw.Describe(name)
	if desc == "" {
		desc = fmt.Sprintf("Call %s.", name)
	}
	if len(params) > 0 {
		desc += " Parameters: " + strings.Join(params, ", ") + "."
	}
	return &mcp.Tool{
		Name:        name,
		Description: desc,
	}
}

// callHandler runs a call through c. Failures are reported in the envelope
// text with IsError set, never as protocol errors.
func callHandler(c Caller, name string) mcp.ToolHandlerFor[map[string]any, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		ctx = callctx.WithCall(ctx, core.CallInfo{Function: name, Transport: "mcp"})

		params, err := paramsFor(args)
		var env envelope.Envelope
		if err != nil {
			env = envelope.Failure("invalid JSON arguments")
		} else {
			env = c.Call(ctx, name, params)
		}

		text, err := json.Marshal(env)
		if err != nil {
			return nil, nil, fmt.Errorf("encode envelope: %w", err)
		}
		return &mcp.CallToolResult{
			IsError: !env.OK(),
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(text)},
			},
		}, nil, nil
	}
}

// paramsFor re-reads tool arguments through the HTTP body rules so numbers
// are normalized the same way on both transports.
func paramsFor(args map[string]any) (core.ParamSet, error) {
	if len(args) == 0 {
		return core.Empty(), nil
	}
	body, err := json.Marshal(args)
	if err != nil {
		return core.ParamSet{}, err
	}
	return core.ParseParams(body)
}
