package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Callers match them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTimeout           = errors.New("operation timed out")
	ErrConflict          = errors.New("concurrent write conflict")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransitionf wraps ErrInvalidTransition with a formatted reason.
func InvalidTransitionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a formatted reason.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
