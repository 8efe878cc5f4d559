package core

import "context"

// Callable is a single invocable function exposed by a registry.
//
// CallNamed and CallPositional return a *BindError when the arguments do not
// fit the function; any other error means the function ran and failed.
type Callable interface {
	// Name is the name the function is registered under.
	Name() string

	// Params returns the declared parameter names in call order, or nil if
	// the function does not expose them.
	Params() []string

	CallNamed(ctx context.Context, args map[string]any) (any, error)
	CallPositional(ctx context.Context, args []any) (any, error)
}

// Describer is implemented by callables that carry a human readable description.
type Describer interface {
	Description() string
}

// Resolver resolves function names to callables. Lookup must be safe for
// concurrent use.
type Resolver interface {
	Lookup(name string) (Callable, bool)
}

// CallInfo describes the request a function is running under.
type CallInfo struct {
	RequestID string
	Function  string
	Transport string // "http", "mcp" or "cli"
}

// Lister enumerates the names a resolver can serve.
type Lister interface {
	Names() []string
}
