package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/canon"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/registry"
)

func newGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	r := registry.New()
	r.MustRegister("version", func() []any { return []any{500, 4000, "15 Mar 2024"} })
	r.MustRegister("symbol_info", func(symbol string) map[string]any {
		return map[string]any{"name": symbol, "digits": 5}
	}, registry.WithParams("symbol"))
	r.MustRegister("fail", func() error { return errors.New("terminal not connected") })
	r.MustRegister("request_id", func(ctx context.Context) string { return callctx.RequestIDFromContext(ctx) })
	r.MustRegister("deep", func() any { return []any{[]any{[]any{1}}} })
	require.NoError(t, r.Init(context.Background()))
	return New(r, opts...)
}

func wire(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// =============================================================================
// Call
// =============================================================================

func TestCall_Envelopes(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		fn     string
		params core.ParamSet
		want   string
	}{
		{"empty", "version", core.Empty(), `{"result":[500,4000,"15 Mar 2024"]}`},
		{"named", "symbol_info", core.Named(map[string]any{"symbol": "EURUSD"}), `{"result":{"digits":5,"name":"EURUSD"}}`},
		{"positional", "symbol_info", core.Positional("GBPUSD"), `{"result":{"digits":5,"name":"GBPUSD"}}`},
		{"not found", "does_not_exist", core.Empty(), `{"error":"Function 'does_not_exist' not found"}`},
		{"execution error", "fail", core.Empty(), `{"error":"terminal not connected"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wire(t, g.Call(ctx, tt.fn, tt.params)))
		})
	}
}

func TestCall_InvalidArguments(t *testing.T) {
	g := newGateway(t)

	env := g.Call(context.Background(), "symbol_info", core.Named(map[string]any{"bogus": int64(1)}))
	require.False(t, env.OK())
	assert.Regexp(t, `^Invalid arguments:`, env.Error)
	assert.Equal(t, core.OutcomeInvalidArgs, env.Outcome())
}

func TestCall_AssignsRequestID(t *testing.T) {
	g := newGateway(t)

	env := g.Call(context.Background(), "request_id", core.Empty())
	require.True(t, env.OK())
	assert.NotEmpty(t, env.Result)

	ctx := callctx.WithCall(context.Background(), core.CallInfo{RequestID: "req-9", Function: "request_id"})
	env = g.Call(ctx, "request_id", core.Empty())
	assert.Equal(t, "req-9", env.Result)
}

func TestCall_UsesCanonicalizer(t *testing.T) {
	g := newGateway(t, WithCanonicalizer(canon.New(canon.WithMaxDepth(2))))

	env := g.Call(context.Background(), "deep", core.Empty())
	assert.False(t, env.OK())
	assert.Equal(t, core.OutcomeSerialization, env.Outcome())
}

func TestFunctions(t *testing.T) {
	g := newGateway(t)
	assert.Equal(t, []string{"deep", "fail", "request_id", "symbol_info", "version"}, g.Functions())
}

type lookupOnly struct{}

func (lookupOnly) Lookup(string) (core.Callable, bool) { return nil, false }

func TestFunctions_ResolverWithoutLister(t *testing.T) {
	g := New(lookupOnly{})
	assert.Equal(t, []string{}, g.Functions())
}

func TestDescribe(t *testing.T) {
	r := registry.New()
	r.MustRegister("symbol_info", func(symbol string) string { return symbol },
		registry.WithParams("symbol"), registry.WithDescription("Symbol properties"))
	require.NoError(t, r.Init(context.Background()))
	g := New(r)

	desc, params, ok := g.Describe("symbol_info")
	require.True(t, ok)
	assert.Equal(t, "Symbol properties", desc)
	assert.Equal(t, []string{"symbol"}, params)

	_, _, ok = g.Describe("missing")
	assert.False(t, ok)

	_, _, ok = New(nil).Describe("symbol_info")
	assert.False(t, ok)
}

func TestReady(t *testing.T) {
	r := registry.New()
	g := New(r)
	assert.False(t, g.Ready())

	require.NoError(t, r.Init(context.Background()))
	assert.True(t, g.Ready())

	require.NoError(t, r.Shutdown(context.Background()))
	assert.False(t, g.Ready())

	assert.True(t, New(lookupOnly{}).Ready())
}

// =============================================================================
// Hooks and events
// =============================================================================

func TestHooks(t *testing.T) {
	g := newGateway(t)

	var (
		mu       sync.Mutex
		started  []string
		finished []core.Event
	)
	g.OnCallStart(func(_ context.Context, e *core.CallStarted) {
		mu.Lock()
		started = append(started, e.Call.Function)
		mu.Unlock()
	})
	g.OnCallFinish(func(_ context.Context, e core.Event) {
		mu.Lock()
		finished = append(finished, e)
		mu.Unlock()
	})

	g.Call(context.Background(), "symbol_info", core.Named(map[string]any{"symbol": "EURUSD"}))
	g.Call(context.Background(), "missing", core.Empty())

	assert.Equal(t, []string{"symbol_info", "missing"}, started)
	require.Len(t, finished, 2)

	completed, ok := finished[0].(*core.CallCompleted)
	require.True(t, ok)
	assert.Equal(t, core.ConventionNamed, completed.Convention)
	assert.NotEmpty(t, completed.Call.RequestID)

	failed, ok := finished[1].(*core.CallFailed)
	require.True(t, ok)
	assert.Equal(t, core.OutcomeNotFound, failed.Outcome)
	assert.Equal(t, "Function 'missing' not found", failed.Error)
}

func TestEvents_SubscribeAndUnsubscribe(t *testing.T) {
	g := newGateway(t)
	events := g.Events()

	g.Call(context.Background(), "version", core.Empty())

	var got []core.Event
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("expected 2 events, got %d", len(got))
		}
	}
	assert.IsType(t, &core.CallStarted{}, got[0])
	assert.IsType(t, &core.CallCompleted{}, got[1])

	g.Unsubscribe(events)
	g.Call(context.Background(), "version", core.Empty())
	select {
	case e := <-events:
		t.Fatalf("unexpected event after unsubscribe: %T", e)
	default:
	}
}

func TestCall_ConcurrentCallers(t *testing.T) {
	g := newGateway(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := g.Call(context.Background(), "symbol_info", core.Positional("EURUSD"))
			assert.True(t, env.OK())
		}()
	}
	wg.Wait()
}
