package generation

import (
	"fmt"
)

// Error wraps a failure reported by a model provider.
type Error struct {
	// Provider is the adapter name.
	Provider string

	// Op is the failing call ("classify" or "stream").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("generation provider %q %s failed: %v", e.Provider, e.Op, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ConfigError indicates an invalid adapter configuration.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("generation provider %q config error (field %q): %s", e.Provider, e.Field, e.Message)
}
