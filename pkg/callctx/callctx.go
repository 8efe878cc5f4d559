// Package callctx provides public access to call context for registered functions.
package callctx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/funcgate/pkg/core"
	intctx "github.com/jdziat/funcgate/pkg/internal/context"
)

// WithCall attaches info to ctx. An empty RequestID is filled with a new
// UUID. Transports call this once per request.
func WithCall(ctx context.Context, info core.CallInfo) context.Context {
	if info.RequestID == "" {
		info.RequestID = uuid.New().String()
	}
	return intctx.WithCallContext(ctx, &intctx.CallContext{
		Info:    info,
		Started: time.Now(),
	})
}

// CallFromContext returns the current call, or false outside a call.
func CallFromContext(ctx context.Context) (core.CallInfo, bool) {
	cc := intctx.GetCallContext(ctx)
	if cc == nil {
		return core.CallInfo{}, false
	}
	return cc.Info, true
}

// RequestIDFromContext returns the current request ID, or empty string outside a call.
// Use this to correlate log lines with the call journal.
func RequestIDFromContext(ctx context.Context) string {
	info, _ := CallFromContext(ctx)
	return info.RequestID
}

// FunctionFromContext returns the name the current call was addressed to.
func FunctionFromContext(ctx context.Context) string {
	info, _ := CallFromContext(ctx)
	return info.Function
}

// Elapsed returns the time since the call started, or zero outside a call.
func Elapsed(ctx context.Context) time.Duration {
	cc := intctx.GetCallContext(ctx)
	if cc == nil || cc.Started.IsZero() {
		return 0
	}
	return time.Since(cc.Started)
}
