// Package gateway ties invocation, canonicalization and envelope building
// into a single call path shared by every transport.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/canon"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/envelope"
	"github.com/jdziat/funcgate/pkg/invoke"
)

// Gateway calls registered functions and returns wire envelopes.
type Gateway struct {
	resolver core.Resolver
	invoker  *invoke.Invoker
	canon    *canon.Canonicalizer
	logger   *slog.Logger
	mu       sync.RWMutex

	// Hooks
	onStart  []func(context.Context, *core.CallStarted)
	onFinish []func(context.Context, core.Event)

	// Event stream
	eventSubs []chan core.Event
}

// Option configures a Gateway.
type Option func(*config)

type config struct {
	canon  *canon.Canonicalizer
	logger *slog.Logger
	tracer trace.Tracer
}

// WithCanonicalizer sets the Canonicalizer used for results.
func WithCanonicalizer(c *canon.Canonicalizer) Option {
	return func(cfg *config) {
		cfg.canon = c
	}
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithTracer sets the tracer for invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(cfg *config) {
		cfg.tracer = t
	}
}

// New creates a Gateway over resolver.
func New(resolver core.Resolver, opts ...Option) *Gateway {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.canon == nil {
		cfg.canon = canon.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	var invokeOpts []invoke.Option
	if cfg.tracer != nil {
		invokeOpts = append(invokeOpts, invoke.WithTracer(cfg.tracer))
	}

	return &Gateway{
		resolver: resolver,
		invoker:  invoke.New(resolver, invokeOpts...),
		canon:    cfg.canon,
		logger:   cfg.logger,
	}
}

// Functions lists the callable names, sorted, when the resolver can
// enumerate them.
func (g *Gateway) Functions() []string {
	if l, ok := g.resolver.(core.Lister); ok {
		return l.Names()
	}
	return []string{}
}

// Describe returns the description and declared parameter names of a
// callable. ok is false when name does not resolve.
func (g *Gateway) Describe(name string) (desc string, params []string, ok bool) {
	if g.resolver == nil {
		return "", nil, false
	}
	c, found := g.resolver.Lookup(name)
	if !found || c == nil {
		return "", nil, false
	}
	if d, isDescriber := c.(core.Describer); isDescriber {
		desc = d.Description()
	}
	return desc, c.Params(), true
}

// Ready reports whether the resolver can serve calls. Resolvers without a
// lifecycle are always ready.
func (g *Gateway) Ready() bool {
	if r, ok := g.resolver.(interface{ Ready() bool }); ok {
		return r.Ready()
	}
	return true
}

// Call invokes name with params and returns its envelope. Call never
// panics and never returns a transport error; every failure is in the
// envelope.
func (g *Gateway) Call(ctx context.Context, name string, params core.ParamSet) envelope.Envelope {
	if ctx == nil {
		ctx = context.Background()
	}
	info, ok := callctx.CallFromContext(ctx)
	if !ok || info.Function != name {
		info.Function = name
		ctx = callctx.WithCall(ctx, info)
		info, _ = callctx.CallFromContext(ctx)
	}

	start := time.Now()
	started := &core.CallStarted{
		Call:       info,
		Convention: params.Convention(),
		Timestamp:  start,
	}
	g.callStartHooks(ctx, started)
	g.Emit(started)

	result, binding, err := g.invoker.InvokeBinding(ctx, name, params)
	env := envelope.Build(result, err, g.canon)
	duration := time.Since(start)

	var finished core.Event
	if env.OK() {
		finished = &core.CallCompleted{
			Call:       info,
			Convention: binding.Convention,
			Fallback:   binding.Fallback,
			Duration:   duration,
			Timestamp:  time.Now(),
		}
		g.logger.Debug("call completed",
			"request_id", info.RequestID,
			"function", name,
			"convention", binding.Convention.String(),
			"fallback", binding.Fallback,
			"duration", duration,
		)
	} else {
		finished = &core.CallFailed{
			Call:       info,
			Convention: binding.Convention,
			Fallback:   binding.Fallback,
			Outcome:    env.Outcome(),
			Error:      env.Error,
			Duration:   duration,
			Timestamp:  time.Now(),
		}
		g.logger.Info("call failed",
			"request_id", info.RequestID,
			"function", name,
			"convention", binding.Convention.String(),
			"outcome", string(env.Outcome()),
			"error", env.Error,
			"duration", duration,
		)
	}
	g.callFinishHooks(ctx, finished)
	g.Emit(finished)

	return env
}

// OnCallStart registers a callback for when a call is received.
func (g *Gateway) OnCallStart(fn func(context.Context, *core.CallStarted)) {
	g.mu.Lock()
	g.onStart = append(g.onStart, fn)
	g.mu.Unlock()
}

// OnCallFinish registers a callback for when a call has its envelope. The
// event is a *core.CallCompleted or *core.CallFailed.
func (g *Gateway) OnCallFinish(fn func(context.Context, core.Event)) {
	g.mu.Lock()
	g.onFinish = append(g.onFinish, fn)
	g.mu.Unlock()
}

// Events returns a channel for receiving call events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (g *Gateway) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	g.mu.Lock()
	g.eventSubs = append(g.eventSubs, ch)
	g.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
func (g *Gateway) Unsubscribe(ch <-chan core.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, sub := range g.eventSubs {
		if sub == ch {
			g.eventSubs = append(g.eventSubs[:i], g.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers.
func (g *Gateway) Emit(e core.Event) {
	g.mu.RLock()
	subs := make([]chan core.Event, len(g.eventSubs))
	copy(subs, g.eventSubs)
	g.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full - this prevents blocking on slow consumers
		}
	}
}

func (g *Gateway) callStartHooks(ctx context.Context, e *core.CallStarted) {
	g.mu.RLock()
	hooks := make([]func(context.Context, *core.CallStarted), len(g.onStart))
	copy(hooks, g.onStart)
	g.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, e)
	}
}

func (g *Gateway) callFinishHooks(ctx context.Context, e core.Event) {
	g.mu.RLock()
	hooks := make([]func(context.Context, core.Event), len(g.onFinish))
	copy(hooks, g.onFinish)
	g.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, e)
	}
}
