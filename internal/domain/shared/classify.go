package shared

import (
	"errors"
	"fmt"
)

// Transient wraps cause as a transient adapter error.
func Transient(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransientAdapter, cause)
}

// Fatal wraps cause as a fatal adapter error.
func Fatal(cause error) error {
	return fmt.Errorf("%w: %w", ErrFatalAdapter, cause)
}

// StoreFailure wraps cause as a store error.
func StoreFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrStore, cause)
}

// Unroutable builds an unroutable error with the given reason.
func Unroutable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnroutable, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err is classified as a fatal adapter failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalAdapter)
}
