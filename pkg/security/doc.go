// Package security provides validation, sanitization, and limits for the funcgate package.
//
// This package includes:
//   - Input validation for function names
//   - Error message sanitization before messages reach clients or the journal
//   - Clamping functions to enforce safe limits on concurrency, nesting depth
//     and request body size
//   - Security-related constants defining maximum sizes and counts
//
// Most users should import the root package github.com/jdziat/funcgate
// which re-exports these functions.
package security
