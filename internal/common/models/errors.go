package models

import "errors"

// ErrNotFound is returned by repositories when a document does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation collides with one already in progress
var ErrConflict = errors.New("conflict")

// ValidationError marks a rejected request payload
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError
func Invalid(message string) error {
	return &ValidationError{Message: message}
}
