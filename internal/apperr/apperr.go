// Package apperr holds the error taxonomy shared by services and the HTTP
// boundary. Services return these; handlers map them to status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("not signed in")

	// ErrPartialWrite marks a two-step write whose first step was stored and
	// whose second step failed. Nothing is rolled back.
	ErrPartialWrite = errors.New("saved, but the follow-up update failed")
)

// ValidationError wraps a user-facing validation message. Fields carries
// per-field messages when the failure came from a form.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid is a shorthand for a ValidationError without field details.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }

// ConflictError is a conflict with a user-facing message that still matches
// ErrConflict under errors.Is.
type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Conflict returns a ConflictError carrying msg.
func Conflict(msg string) error { return &ConflictError{Msg: msg} }

// Status maps err to an HTTP status code.
func Status(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
