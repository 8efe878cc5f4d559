package callctx

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/funcgate/pkg/core"
	intctx "github.com/jdziat/funcgate/pkg/internal/context"
)

func TestWithCall(t *testing.T) {
	t.Run("keeps a supplied request ID", func(t *testing.T) {
		// Arrange
		info := core.CallInfo{RequestID: "req-42", Function: "version", Transport: "http"}

		// Act
		ctx := WithCall(context.Background(), info)
		got, ok := CallFromContext(ctx)

		// Assert
		if !ok {
			t.Fatal("expected call info to be set")
		}
		if got != info {
			t.Errorf("expected %+v, got %+v", info, got)
		}
	})

	t.Run("generates a request ID when missing", func(t *testing.T) {
		// Act
		ctx := WithCall(context.Background(), core.CallInfo{Function: "version"})
		id := RequestIDFromContext(ctx)

		// Assert
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("expected a UUID request ID, got %q: %v", id, err)
		}
	})
}

func TestRequestIDFromContext(t *testing.T) {
	t.Run("returns empty string outside a call", func(t *testing.T) {
		if id := RequestIDFromContext(context.Background()); id != "" {
			t.Errorf("expected empty request ID, got %q", id)
		}
	})

	t.Run("reads the internal call context", func(t *testing.T) {
		// Arrange
		ctx := intctx.WithCallContext(context.Background(), &intctx.CallContext{
			Info: core.CallInfo{RequestID: "req-7", Function: "symbol_info"},
		})

		// Act & Assert
		if id := RequestIDFromContext(ctx); id != "req-7" {
			t.Errorf("expected %q, got %q", "req-7", id)
		}
		if fn := FunctionFromContext(ctx); fn != "symbol_info" {
			t.Errorf("expected %q, got %q", "symbol_info", fn)
		}
	})
}

func TestElapsed(t *testing.T) {
	t.Run("zero outside a call", func(t *testing.T) {
		if d := Elapsed(context.Background()); d != 0 {
			t.Errorf("expected 0, got %v", d)
		}
	})

	t.Run("measures from call start", func(t *testing.T) {
		// Arrange
		ctx := intctx.WithCallContext(context.Background(), &intctx.CallContext{
			Started: time.Now().Add(-time.Second),
		})

		// Act
		d := Elapsed(ctx)

		// Assert
		if d < time.Second {
			t.Errorf("expected at least 1s, got %v", d)
		}
	})
}
