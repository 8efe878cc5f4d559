// Package handler provides internal reflection-based function adapters.
//
// This package is internal and should not be imported directly.
// It provides:
//   - Handler: signature metadata for a registered Go function
//   - Named binding (by declared parameter name or into a struct argument)
//   - Positional binding with JSON-based argument coercion
//   - Result unpacking, with trailing errors and panics reported as
//     execution failures
package handler
