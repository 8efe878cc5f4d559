// Package security provides validation, sanitization, and limits for the funcgate package.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/funcgate/pkg/core"
)

// Security limits and configuration
const (
	// MaxFunctionNameLength is the maximum length for function names
	MaxFunctionNameLength = 255

	// MaxRequestBodySize is the default maximum size in bytes for a request body (1MB)
	MaxRequestBodySize = 1 << 20

	// MaxConcurrency is the hard limit for concurrently executing calls
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for returned or stored error messages
	MaxErrorMessageLength = 4096

	// DefaultMaxDepth is the default nesting limit for canonical results
	DefaultMaxDepth = 64

	// MaxDepth is the hard limit for canonical result nesting
	MaxDepth = 1024
)

// validFunctionName matches alphanumeric, hyphens, underscores, and dots
var validFunctionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_\-\.]*$`)

// ValidateFunctionName validates a function name
func ValidateFunctionName(name string) error {
	if name == "" {
		return core.ErrInvalidFunctionName
	}
	if len(name) > MaxFunctionNameLength {
		return core.ErrFunctionNameTooLong
	}
	if !validFunctionName.MatchString(name) {
		return core.ErrInvalidFunctionName
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages before they
// leave the process
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	// Truncate if too long
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// ClampDepth ensures a nesting limit is within limits. Non-positive values
// select DefaultMaxDepth.
func ClampDepth(n int) int {
	if n <= 0 {
		return DefaultMaxDepth
	}
	if n > MaxDepth {
		return MaxDepth
	}
	return n
}

// ClampBodySize ensures a request body limit is positive. Non-positive
// values select MaxRequestBodySize.
func ClampBodySize(n int64) int64 {
	if n <= 0 {
		return MaxRequestBodySize
	}
	return n
}
