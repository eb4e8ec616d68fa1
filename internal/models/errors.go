package models

import "errors"

var (
	// ErrNotFound is returned when the target task or user does not exist
	// (or is not visible to the caller).
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when input fails client or server side checks.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when credentials are missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
	// ErrTransient covers network and server failures with no specific meaning.
	ErrTransient = errors.New("transient failure")
)

// ValidationError carries the message of a failed field check.
type ValidationError struct {
	Message string
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
