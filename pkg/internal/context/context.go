// Package context provides context helpers for the funcgate package.
package context

import (
	"context"
	"time"

	"github.com/jdziat/funcgate/pkg/core"
)

// CallContextKey is the key for storing call context in context.Context.
type CallContextKey struct{}

// CallContext holds the request a function call belongs to.
type CallContext struct {
	Info    core.CallInfo
	Started time.Time
}

// GetCallContext retrieves the call context from a context.Context.
func GetCallContext(ctx context.Context) *CallContext {
	if ctx == nil {
		return nil
	}
	if cc, ok := ctx.Value(CallContextKey{}).(*CallContext); ok {
		return cc
	}
	return nil
}

// WithCallContext adds call context to a context.Context.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, CallContextKey{}, cc)
}
