// Package funcgate exposes named Go functions as JSON callables.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	r := funcgate.NewRegistry()
//	r.MustRegister("symbol_info", func(symbol string) (*Symbol, error) {
//	    return lookup(symbol)
//	}, funcgate.WithParams("symbol"))
//	r.Init(ctx)
//
//	gw := funcgate.New(r)
//	env := gw.Call(ctx, "symbol_info", funcgate.Named(map[string]any{"symbol": "EURUSD"}))
//
//	srv, _ := funcgate.NewServer(gw, funcgate.WithAddr(":5000"))
//	srv.Run(ctx)
package funcgate

import (
	"context"
	"net/http"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/canon"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/envelope"
	"github.com/jdziat/funcgate/pkg/gateway"
	"github.com/jdziat/funcgate/pkg/mcpbridge"
	"github.com/jdziat/funcgate/pkg/registry"
	"github.com/jdziat/funcgate/pkg/security"
	"github.com/jdziat/funcgate/pkg/server"
)

type (
	// Gateway calls registered functions and returns wire envelopes.
	Gateway = gateway.Gateway

	// GatewayOption configures a Gateway.
	GatewayOption = gateway.Option

	// Registry holds the functions a gateway can call.
	Registry = registry.Registry

	// RegistryOption configures a Registry.
	RegistryOption = registry.Option

	// FuncOption configures a single registered function.
	FuncOption = registry.FuncOption

	// Callable is a function the gateway can invoke by name.
	Callable = core.Callable

	// Resolver finds callables by name.
	Resolver = core.Resolver

	// ParamSet is the parameters of one call.
	ParamSet = core.ParamSet

	// Convention is how a ParamSet binds to a callable.
	Convention = core.Convention

	// Envelope is the response for a single call.
	Envelope = envelope.Envelope

	// Outcome classifies how a call ended.
	Outcome = core.Outcome

	// Canonicalizer converts results to JSON-ready values.
	Canonicalizer = canon.Canonicalizer

	// Field is one named value of a Record.
	Field = core.Field

	// Record is a result exposing ordered named fields.
	Record = core.Record

	// Buffer is a result exposing itself as a list.
	Buffer = core.Buffer

	// Instant is a result exposing a point in time.
	Instant = core.Instant

	// Map is an insertion-ordered string map.
	Map = core.Map

	// CallInfo identifies a call in progress.
	CallInfo = core.CallInfo

	// Event is the interface for all call events.
	Event = core.Event

	// CallStarted is emitted when a call is received.
	CallStarted = core.CallStarted

	// CallCompleted is emitted when a call returns a result.
	CallCompleted = core.CallCompleted

	// CallFailed is emitted when a call returns an error envelope.
	CallFailed = core.CallFailed

	// NotFoundError reports an unknown function name.
	NotFoundError = core.NotFoundError

	// ArgumentError reports parameters that do not bind.
	ArgumentError = core.ArgumentError

	// ExecutionError reports a failure inside the function.
	ExecutionError = core.ExecutionError

	// Server serves a Gateway over HTTP.
	Server = server.Server

	// ServerOption configures a Server.
	ServerOption = server.Option
)

// Conventions
const (
	ConventionEmpty      = core.ConventionEmpty
	ConventionPositional = core.ConventionPositional
	ConventionNamed      = core.ConventionNamed
)

// Outcomes
const (
	OutcomeOK             = core.OutcomeOK
	OutcomeNotFound       = core.OutcomeNotFound
	OutcomeInvalidArgs    = core.OutcomeInvalidArgs
	OutcomeExecutionError = core.OutcomeExecutionError
	OutcomeSerialization  = core.OutcomeSerialization
	OutcomeTimeout        = core.OutcomeTimeout
)

// Security limits
const (
	MaxFunctionNameLength = security.MaxFunctionNameLength
	MaxRequestBodySize    = security.MaxRequestBodySize
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
	DefaultMaxDepth       = security.DefaultMaxDepth
)

// Error variables
var (
	ErrNotFound            = core.ErrNotFound
	ErrInvalidFunctionName = core.ErrInvalidFunctionName
	ErrFunctionNameTooLong = core.ErrFunctionNameTooLong
	ErrDuplicateFunction   = core.ErrDuplicateFunction
	ErrRegistrySealed      = core.ErrRegistrySealed
	ErrRegistryNotReady    = core.ErrRegistryNotReady
	ErrDepthExceeded       = core.ErrDepthExceeded
	ErrCycleDetected       = core.ErrCycleDetected
)

// New creates a Gateway over resolver.
func New(resolver Resolver, opts ...GatewayOption) *Gateway {
	return gateway.New(resolver, opts...)
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	return registry.New(opts...)
}

// NewServer creates an HTTP server for gw.
func NewServer(gw *Gateway, opts ...ServerOption) (*Server, error) {
	return server.New(gw, opts...)
}

// MCPHandler serves gw's functions as MCP tools over streamable HTTP.
func MCPHandler(gw *Gateway) http.Handler {
	return mcpbridge.Handler(gw)
}

// NewCanonicalizer creates a Canonicalizer with the given nesting limit.
// A non-positive depth selects DefaultMaxDepth.
func NewCanonicalizer(maxDepth int) *Canonicalizer {
	if maxDepth <= 0 {
		return canon.New()
	}
	return canon.New(canon.WithMaxDepth(maxDepth))
}

// Canonicalize converts v with the default Canonicalizer.
func Canonicalize(v any) (any, error) {
	return canon.Canonicalize(v)
}

// Build converts an invocation result into an envelope.
func Build(result any, err error) Envelope {
	return envelope.Build(result, err, nil)
}

// Parameter sets

// Empty is a call without parameters.
func Empty() ParamSet {
	return core.Empty()
}

// Positional is a call with positional arguments.
func Positional(args ...any) ParamSet {
	return core.Positional(args...)
}

// Named is a call with named arguments.
func Named(kwargs map[string]any) ParamSet {
	return core.Named(kwargs)
}

// ParseParams reads a JSON request body into a ParamSet.
func ParseParams(body []byte) (ParamSet, error) {
	return core.ParseParams(body)
}

// Registry options

// OnInit runs fn when the registry is initialized.
func OnInit(fn func(ctx context.Context) error) RegistryOption {
	return registry.OnInit(fn)
}

// OnShutdown runs fn when the registry shuts down.
func OnShutdown(fn func(ctx context.Context) error) RegistryOption {
	return registry.OnShutdown(fn)
}

// WithParams declares the parameter names of a function.
func WithParams(names ...string) FuncOption {
	return registry.WithParams(names...)
}

// WithDescription sets a function's description.
func WithDescription(text string) FuncOption {
	return registry.WithDescription(text)
}

// Gateway options

// WithCanonicalizer sets the Canonicalizer used for results.
func WithCanonicalizer(c *Canonicalizer) GatewayOption {
	return gateway.WithCanonicalizer(c)
}

// Server options

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return server.WithAddr(addr)
}

// WithMCP serves the gateway's functions as MCP tools on /mcp, under the
// server's rate limit, in-flight slots and call timeout.
func WithMCP() ServerOption {
	return server.WithMCP()
}

// Context

// RequestIDFromContext returns the current request id, or empty string
// outside a call.
func RequestIDFromContext(ctx context.Context) string {
	return callctx.RequestIDFromContext(ctx)
}

// CallFromContext returns the current call, if any.
func CallFromContext(ctx context.Context) (CallInfo, bool) {
	return callctx.CallFromContext(ctx)
}

// ValidateFunctionName validates a function name.
func ValidateFunctionName(name string) error {
	return security.ValidateFunctionName(name)
}
