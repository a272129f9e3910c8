// Package apperror defines the application's error taxonomy.
//
// Services return these instead of raw database or library errors so that
// handlers can map them to HTTP status codes with errors.Is, without the
// service layer ever knowing about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match with errors.Is(err, apperror.ErrNotFound)
// etc. — the chain is preserved because AppError implements Unwrap.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError pairs a sentinel with a human-readable message and, for validation
// failures, the offending field.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that an identifier resolved to no visible or owned row.
// The key is whatever the caller looked up by: numeric ID, slug, or short ID.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

// ValidationFailed reports a rejected input value.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a unique-constraint violation (slug, short ID, username,
// email, API key). The write was rejected; the caller may retry with a new
// candidate value.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Forbidden reports that the caller is authenticated but lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
