package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/internal/handler"
	"github.com/jdziat/funcgate/pkg/security"
)

// State is the lifecycle state of a Registry.
type State int32

const (
	// StateCreated accepts registrations; lookups miss.
	StateCreated State = iota
	// StateReady serves lookups; registration is closed.
	StateReady
	// StateFailed means Init returned an error. Lookups miss.
	StateFailed
	// StateStopped means Shutdown ran. Lookups miss.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Registry maps function names to callables.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]core.Callable
	state atomic.Int32

	lifecycleMu sync.Mutex
	onInit      []func(ctx context.Context) error
	onShutdown  []func(ctx context.Context) error
}

var _ core.Resolver = (*Registry)(nil)

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]core.Callable),
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// Register adapts fn and registers it under name.
// Function names must be alphanumeric (starting with a letter or underscore), max 255 chars.
func (r *Registry) Register(name string, fn any, opts ...FuncOption) error {
	if err := security.ValidateFunctionName(name); err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	o := &funcOptions{}
	for _, opt := range opts {
		opt.applyFunc(o)
	}

	h, err := handler.NewHandler(name, fn, o.params)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	h.Desc = o.description

	return r.add(name, h)
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, fn any, opts ...FuncOption) {
	if err := r.Register(name, fn, opts...); err != nil {
		panic(fmt.Sprintf("funcgate: %v", err))
	}
}

// RegisterCallable registers a hand-written adapter.
func (r *Registry) RegisterCallable(c core.Callable) error {
	if c == nil {
		return fmt.Errorf("register: callable cannot be nil")
	}
	if err := security.ValidateFunctionName(c.Name()); err != nil {
		return fmt.Errorf("register %q: %w", c.Name(), err)
	}
	return r.add(c.Name(), c)
}

func (r *Registry) add(name string, c core.Callable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateCreated {
		return fmt.Errorf("register %q: %w", name, core.ErrRegistrySealed)
	}
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("register %q: %w", name, core.ErrDuplicateFunction)
	}
	r.funcs[name] = c
	return nil
}

// Lookup returns the callable registered under name. It always misses
// unless the registry is ready.
func (r *Registry) Lookup(name string) (core.Callable, bool) {
	if r.State() != StateReady {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.funcs[name]
	return c, ok
}

// Has reports whether a function is registered, regardless of state.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description registered for name, if any.
func (r *Registry) Describe(name string) string {
	r.mu.RLock()
	c, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return ""
	}
	if d, ok := c.(core.Describer); ok {
		return d.Description()
	}
	return ""
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	return State(r.state.Load())
}

// Ready reports whether the registry is serving lookups.
func (r *Registry) Ready() bool {
	return r.State() == StateReady
}

// Init runs the init hooks and marks the registry ready. It may only be
// called once; a failed Init leaves the registry in StateFailed.
func (r *Registry) Init(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if s := r.State(); s != StateCreated {
		return fmt.Errorf("funcgate: registry init in state %s", s)
	}

	for _, hook := range r.onInit {
		if err := hook(ctx); err != nil {
			r.state.Store(int32(StateFailed))
			return fmt.Errorf("funcgate: registry init: %w", err)
		}
	}

	// Take the write lock so no Register call is mid-flight when we seal.
	r.mu.Lock()
	r.state.Store(int32(StateReady))
	r.mu.Unlock()
	return nil
}

// Shutdown stops serving lookups and runs the shutdown hooks in reverse
// order. Every hook runs; their errors are joined.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.State() == StateStopped {
		return nil
	}
	r.state.Store(int32(StateStopped))

	var errs []error
	for i := len(r.onShutdown) - 1; i >= 0; i-- {
		if err := r.onShutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
