// Package context provides internal context helpers for function calls.
//
// This package is internal and should not be imported directly.
// It carries the request id, function name and transport of the call in
// flight so that callables and hooks can correlate their work.
package context
