// Package apperror defines the error taxonomy shared by the web client and the dev backend.
//
// Every failure that reaches a store or a handler is an *AppError wrapping one of the
// sentinels below. Callers branch with errors.Is and read the human-readable text with
// MessageOf, which is what the stores record as their "last error".
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfiguration is fatal: the app cannot start without its backend settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth covers auth-service rejections (bad credentials, duplicate sign-up, ...).
	ErrAuth = errors.New("auth error")

	// ErrQuery covers table API failures (network, permission, validation).
	ErrQuery = errors.New("query error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: HTTP status reported by the remote service
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Configuration reports missing or malformed startup settings.
func Configuration(field, message string) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Message: message,
		Field:   field,
	}
}

// Auth wraps a rejection from the auth service. status is the HTTP status it answered with,
// or 0 when the failure happened before a response arrived.
func Auth(status int, message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
		Status:  status,
	}
}

// Query wraps a failure from the table API.
func Query(status int, message string) *AppError {
	return &AppError{
		Err:     ErrQuery,
		Message: message,
		Status:  status,
	}
}

// MessageOf returns the message a user should see for err.
// For an *AppError anywhere in the chain that is its Message; otherwise err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
