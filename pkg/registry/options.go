package registry

import "context"

// Option configures a Registry.
type Option interface {
	apply(*Registry)
}

type optionFunc func(*Registry)

func (f optionFunc) apply(r *Registry) { f(r) }

// OnInit adds a hook that runs during Init. Hooks run in order and the first
// error aborts initialization.
func OnInit(fn func(ctx context.Context) error) Option {
	return optionFunc(func(r *Registry) {
		r.onInit = append(r.onInit, fn)
	})
}

// OnShutdown adds a hook that runs during Shutdown, in reverse order of
// registration.
func OnShutdown(fn func(ctx context.Context) error) Option {
	return optionFunc(func(r *Registry) {
		r.onShutdown = append(r.onShutdown, fn)
	})
}

// FuncOption configures a single registered function.
type FuncOption interface {
	applyFunc(*funcOptions)
}

type funcOptions struct {
	params      []string
	description string
}

type funcOptionFunc func(*funcOptions)

func (f funcOptionFunc) applyFunc(o *funcOptions) { f(o) }

// WithParams declares the parameter names of a function, in call order,
// excluding a leading context.Context. Without it the function only accepts
// positional arguments (or named arguments decoded into a single struct).
func WithParams(names ...string) FuncOption {
	return funcOptionFunc(func(o *funcOptions) {
		o.params = names
	})
}

// WithDescription attaches a human readable description, surfaced by
// discovery endpoints.
func WithDescription(text string) FuncOption {
	return funcOptionFunc(func(o *funcOptions) {
		o.description = text
	})
}
