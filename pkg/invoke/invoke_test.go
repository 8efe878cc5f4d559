package invoke

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/registry"
)

type symbolArgs struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

func newInvoker(t *testing.T, setup func(r *registry.Registry)) *Invoker {
	t.Helper()
	r := registry.New()
	setup(r)
	require.NoError(t, r.Init(context.Background()))
	return New(r)
}

// =============================================================================
// Resolution
// =============================================================================

func TestInvoke_NotFound(t *testing.T) {
	inv := newInvoker(t, func(*registry.Registry) {})

	_, err := inv.Invoke(context.Background(), "does_not_exist", core.Empty())
	require.Error(t, err)

	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "does_not_exist", nf.Name)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvoke_NotReadyRegistryIsNotFound(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("version", func() string { return "1" }))
	inv := New(r)

	_, err := inv.Invoke(context.Background(), "version", core.Empty())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvoke_NilResolver(t *testing.T) {
	_, err := New(nil).Invoke(context.Background(), "version", core.Empty())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// =============================================================================
// Conventions
// =============================================================================

func TestInvoke_Empty(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("version", func() []any { return []any{500, 4000, "15 Mar 2024"} })
	})

	result, binding, err := inv.InvokeBinding(context.Background(), "version", core.Empty())
	require.NoError(t, err)
	assert.Equal(t, []any{500, 4000, "15 Mar 2024"}, result)
	assert.Equal(t, core.ConventionEmpty, binding.Convention)
	assert.False(t, binding.Fallback)
}

func TestInvoke_NoParamsRejectsExtras(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("version", func() string { return "1" })
	})

	tests := []struct {
		name   string
		params core.ParamSet
	}{
		{"positional", core.Positional(1)},
		{"named", core.Named(map[string]any{"x": 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.Invoke(context.Background(), "version", tt.params)
			var argErr *core.ArgumentError
			assert.ErrorAs(t, err, &argErr)
		})
	}
}

func TestInvoke_Positional(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("sub", func(a, b int) int { return a - b }, registry.WithParams("a", "b"))
	})

	result, err := inv.Invoke(context.Background(), "sub", core.Positional(int64(10), int64(3)))
	require.NoError(t, err)
	assert.Equal(t, 7, result)

	_, err = inv.Invoke(context.Background(), "sub", core.Positional(int64(10)))
	var argErr *core.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Contains(t, argErr.Err.Error(), "takes 2 positional arguments but 1 were given")
}

func TestInvoke_NamedBindsByKeyword(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("symbol_info", func(symbol string) string { return "info:" + symbol },
			registry.WithParams("symbol"))
	})

	result, binding, err := inv.InvokeBinding(context.Background(), "symbol_info",
		core.Named(map[string]any{"symbol": "EURUSD"}))
	require.NoError(t, err)
	assert.Equal(t, "info:EURUSD", result)
	assert.Equal(t, core.ConventionNamed, binding.Convention)
	assert.False(t, binding.Fallback)
}

func TestInvoke_NamedBogusKeyIsArgumentError(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("symbol_info", func(symbol string) string { return symbol },
			registry.WithParams("symbol"))
	})

	_, err := inv.Invoke(context.Background(), "symbol_info", core.Named(map[string]any{"bogus": int64(1)}))
	var argErr *core.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Contains(t, argErr.Err.Error(), "takes 1 positional arguments but 0 were given")
}

func TestInvoke_NamedStructArgument(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("rates", func(a symbolArgs) string { return a.Symbol })
	})

	result, err := inv.Invoke(context.Background(), "rates",
		core.Named(map[string]any{"symbol": "GBPUSD", "count": int64(10)}))
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", result)
}

// =============================================================================
// Positional fallback
// =============================================================================

// strictCallable rejects every named call so the fallback path always runs.
type strictCallable struct {
	params []string
	got    [][]any
}

func (c *strictCallable) Name() string     { return "strict" }
func (c *strictCallable) Params() []string { return c.params }
func (c *strictCallable) CallNamed(context.Context, map[string]any) (any, error) {
	return nil, core.Bindf("strict() takes no keyword arguments")
}
func (c *strictCallable) CallPositional(_ context.Context, args []any) (any, error) {
	c.got = append(c.got, args)
	return len(args), nil
}

func newStrictInvoker(t *testing.T, c *strictCallable) *Invoker {
	t.Helper()
	return newInvoker(t, func(r *registry.Registry) {
		require.NoError(t, r.RegisterCallable(c))
	})
}

func TestInvoke_FallbackUsesDeclaredOrderAndSkipsHoles(t *testing.T) {
	c := &strictCallable{params: []string{"symbol", "date_from", "count"}}
	inv := newStrictInvoker(t, c)

	result, binding, err := inv.InvokeBinding(context.Background(), "strict",
		core.Named(map[string]any{"count": int64(5), "symbol": "EURUSD"}))
	require.NoError(t, err)
	assert.True(t, binding.Fallback)
	assert.Equal(t, 2, result)
	require.Len(t, c.got, 1)
	assert.Equal(t, []any{"EURUSD", int64(5)}, c.got[0])
}

func TestInvoke_FallbackIgnoresUndeclaredKeys(t *testing.T) {
	c := &strictCallable{params: []string{"a", "b"}}
	inv := newStrictInvoker(t, c)

	_, err := inv.Invoke(context.Background(), "strict",
		core.Named(map[string]any{"b": 2, "zzz": 9}))
	require.NoError(t, err)
	assert.Equal(t, []any{2}, c.got[0])
}

func TestInvoke_FallbackWithoutDeclaredNames(t *testing.T) {
	c := &strictCallable{}
	inv := newStrictInvoker(t, c)

	_, err := inv.Invoke(context.Background(), "strict", core.Named(map[string]any{"a": 1}))
	var argErr *core.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "strict() takes no keyword arguments", argErr.Err.Error())
	assert.Empty(t, c.got)
}

func TestInvoke_FallbackForVariadicFunction(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("join", func(sep string, parts ...string) string {
			out := ""
			for i, p := range parts {
				if i > 0 {
					out += sep
				}
				out += p
			}
			return out
		}, registry.WithParams("sep", "parts"))
	})

	result, err := inv.Invoke(context.Background(), "join",
		core.Named(map[string]any{"sep": "-", "parts": []any{"a", "b"}}))
	require.NoError(t, err)
	assert.Equal(t, "a-b", result)
}

// =============================================================================
// Execution
// =============================================================================

func TestInvoke_ExecutionErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("order_send", func(symbol string) (any, error) {
			calls.Add(1)
			return nil, errors.New("market closed")
		}, registry.WithParams("symbol"))
	})

	_, err := inv.Invoke(context.Background(), "order_send", core.Named(map[string]any{"symbol": "EURUSD"}))
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "market closed", execErr.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvoke_BodyBindErrorIsExecutionError(t *testing.T) {
	var runs atomic.Int32
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("relay", func(symbol string) (string, error) {
			runs.Add(1)
			return "", fmt.Errorf("nested: %w", core.Bindf("inner() missing required argument 'x'"))
		}, registry.WithParams("symbol"))
	})

	tests := []struct {
		name   string
		params core.ParamSet
	}{
		{"named", core.Named(map[string]any{"symbol": "EURUSD"})},
		{"positional", core.Positional("EURUSD")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs.Store(0)
			_, binding, err := inv.InvokeBinding(context.Background(), "relay", tt.params)

			var execErr *core.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, "nested: inner() missing required argument 'x'", execErr.Error())
			assert.False(t, binding.Fallback)
			assert.Equal(t, int32(1), runs.Load())
		})
	}
}

type wrappedBindCallable struct{ runs int }

func (c *wrappedBindCallable) Name() string     { return "wrapped" }
func (c *wrappedBindCallable) Params() []string { return []string{"a"} }
func (c *wrappedBindCallable) CallNamed(context.Context, map[string]any) (any, error) {
	c.runs++
	return nil, fmt.Errorf("backend: %w", core.Bindf("remote() takes no keyword arguments"))
}
func (c *wrappedBindCallable) CallPositional(context.Context, []any) (any, error) {
	c.runs++
	return "positional", nil
}

func TestInvoke_OnlyDirectBindErrorFallsBack(t *testing.T) {
	c := &wrappedBindCallable{}
	inv := newInvoker(t, func(r *registry.Registry) {
		require.NoError(t, r.RegisterCallable(c))
	})

	_, binding, err := inv.InvokeBinding(context.Background(), "wrapped", core.Named(map[string]any{"a": 1}))
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.False(t, binding.Fallback)
	assert.Equal(t, 1, c.runs)
}

func TestInvoke_PanicIsExecutionError(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("boom", func() int { panic("bad state") })
	})

	_, err := inv.Invoke(context.Background(), "boom", core.Empty())
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "bad state")
}

type plainErrCallable struct{}

func (plainErrCallable) Name() string     { return "plain" }
func (plainErrCallable) Params() []string { return nil }
func (plainErrCallable) CallNamed(context.Context, map[string]any) (any, error) {
	return nil, errors.New("named failed")
}
func (plainErrCallable) CallPositional(context.Context, []any) (any, error) {
	return nil, errors.New("positional failed")
}

func TestInvoke_PlainErrorsBecomeExecutionErrors(t *testing.T) {
	inv := newInvoker(t, func(r *registry.Registry) {
		require.NoError(t, r.RegisterCallable(plainErrCallable{}))
	})

	_, err := inv.Invoke(context.Background(), "plain", core.Named(map[string]any{"a": 1}))
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "named failed", execErr.Error())

	_, err = inv.Invoke(context.Background(), "plain", core.Empty())
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "positional failed", execErr.Error())
}

func TestInvoke_ContextPassedThrough(t *testing.T) {
	type key struct{}
	inv := newInvoker(t, func(r *registry.Registry) {
		r.MustRegister("ctx", func(ctx context.Context) any { return ctx.Value(key{}) })
	})

	ctx := context.WithValue(context.Background(), key{}, "v")
	result, err := inv.Invoke(ctx, "ctx", core.Empty())
	require.NoError(t, err)
	assert.Equal(t, "v", result)
}
