// Package invoke resolves functions by name and binds request parameters to
// them.
package invoke

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/funcgate/pkg/core"
)

const tracerName = "github.com/jdziat/funcgate/pkg/invoke"

// Binding describes how a call was bound.
type Binding struct {
	Convention core.Convention

	// Fallback is set when named parameters were rejected and rebound
	// positionally in declared parameter order.
	Fallback bool
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithTracer sets the tracer used for call spans. The global tracer
// provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(i *Invoker) {
		i.tracer = t
	}
}

// Invoker calls functions from a resolver.
type Invoker struct {
	resolver core.Resolver
	tracer   trace.Tracer
}

// New creates an Invoker over resolver.
func New(resolver core.Resolver, opts ...Option) *Invoker {
	i := &Invoker{resolver: resolver}
	for _, opt := range opts {
		opt(i)
	}
	if i.tracer == nil {
		i.tracer = otel.Tracer(tracerName)
	}
	return i
}

// Invoke calls the function registered under name.
//
// The returned error is a *core.NotFoundError, *core.ArgumentError or
// *core.ExecutionError. A function whose arguments were bound is executed at
// most once.
func (i *Invoker) Invoke(ctx context.Context, name string, params core.ParamSet) (any, error) {
	result, _, err := i.InvokeBinding(ctx, name, params)
	return result, err
}

// InvokeBinding is Invoke, also reporting how the parameters were bound.
func (i *Invoker) InvokeBinding(ctx context.Context, name string, params core.ParamSet) (any, Binding, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	binding := Binding{Convention: params.Convention()}

	ctx, span := i.tracer.Start(ctx, "funcgate.invoke "+name,
		trace.WithAttributes(
			attribute.String("funcgate.function", name),
			attribute.String("funcgate.convention", binding.Convention.String()),
		),
	)
	defer span.End()

	fn, ok := i.lookup(name)
	if !ok {
		err := &core.NotFoundError{Name: name}
		span.SetStatus(codes.Error, err.Error())
		return nil, binding, err
	}

	result, err := i.dispatch(ctx, fn, params, &binding)
	span.SetAttributes(attribute.Bool("funcgate.fallback", binding.Fallback))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, binding, err
	}
	return result, binding, nil
}

func (i *Invoker) lookup(name string) (core.Callable, bool) {
	if i.resolver == nil || name == "" {
		return nil, false
	}
	return i.resolver.Lookup(name)
}

func (i *Invoker) dispatch(ctx context.Context, fn core.Callable, params core.ParamSet, binding *Binding) (any, error) {
	switch params.Convention() {
	case core.ConventionNamed:
		result, err := fn.CallNamed(ctx, params.Kwargs())
		bindErr, rejected := err.(*core.BindError)
		if !rejected {
			return result, classify(err)
		}

		names := fn.Params()
		if len(names) == 0 {
			return nil, &core.ArgumentError{Err: bindErr}
		}
		binding.Fallback = true
		return call(fn.CallPositional(ctx, bindPresent(names, params.Kwargs())))

	case core.ConventionPositional:
		return call(fn.CallPositional(ctx, params.Args()))

	default:
		return call(fn.CallPositional(ctx, nil))
	}
}

// bindPresent orders kwargs by the declared names. Names without a value
// are skipped, not padded.
func bindPresent(names []string, kwargs map[string]any) []any {
	args := make([]any, 0, len(kwargs))
	for _, name := range names {
		if v, ok := kwargs[name]; ok {
			args = append(args, v)
		}
	}
	return args
}

// call maps a callable's return. Only a BindError returned as is means the
// body did not run; one wrapped in the body's error is an execution failure.
func call(result any, err error) (any, error) {
	if bindErr, ok := err.(*core.BindError); ok {
		return nil, &core.ArgumentError{Err: bindErr}
	}
	return result, classify(err)
}

// classify maps an error raised after binding to an ExecutionError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	return &core.ExecutionError{Err: err}
}
