package core

import (
	"errors"
	"fmt"
)

// Registration and lifecycle errors
var (
	ErrInvalidFunctionName = errors.New("funcgate: invalid function name (must be alphanumeric, start with letter or underscore)")
	ErrFunctionNameTooLong = errors.New("funcgate: function name too long")
	ErrDuplicateFunction   = errors.New("funcgate: function already registered")
	ErrRegistrySealed      = errors.New("funcgate: registry is initialized, registration is closed")
	ErrRegistryNotReady    = errors.New("funcgate: registry is not initialized")
)

// Invocation and serialization errors
var (
	ErrNotFound      = errors.New("funcgate: function not found")
	ErrDepthExceeded = errors.New("funcgate: result nesting exceeds maximum depth")
	ErrCycleDetected = errors.New("funcgate: result contains a reference cycle")
)

// NotFoundError reports that a name did not resolve to an invocable function.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Function '%s' not found", e.Name)
}

// Is reports ErrNotFound equivalence so callers can use errors.Is.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// BindError is returned by a Callable when the supplied arguments do not fit
// its parameters. The function body has not run.
type BindError struct {
	Msg string
}

func (e *BindError) Error() string {
	return e.Msg
}

// Bindf builds a BindError from a format string.
func Bindf(format string, args ...any) error {
	return &BindError{Msg: fmt.Sprintf(format, args...)}
}

// ArgumentError indicates that no calling convention could bind the request
// parameters to the function.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments: %v", e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ExecutionError indicates that the function ran and reported a failure.
// It is never retried.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "execution failed"
	}
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Executionf builds an ExecutionError from a format string.
func Executionf(format string, args ...any) error {
	return &ExecutionError{Err: fmt.Errorf(format, args...)}
}
