package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shift-staffing-client/models"
)

// ErrUnauthorized matches any ServerError carrying a 401.
var ErrUnauthorized = errors.New("session unauthorized")

// ErrClosed is returned by components after Close.
var ErrClosed = errors.New("component closed")

// ErrNotFound is returned when a cached entity is unknown locally.
var ErrNotFound = errors.New("not found")

// ValidationError is raised locally before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NetworkError means the server could not be reached or did not answer in time.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx answer from a reachable server.
type ServerError struct {
	Status    int
	Message   string
	Errors    []models.FieldError
	RequestID string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			fields = append(fields, fe.Field+": "+fe.Message)
		}
		msg += " (" + strings.Join(fields, "; ") + ")"
	}
	return fmt.Sprintf("server error %d: %s", e.Status, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *ServerError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// ConflictError is a 409: the entity changed underneath the caller, e.g. a
// shift that filled up before the application reached the server.
type ConflictError struct {
	*ServerError
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.ServerError.Error()
}

func (e *ConflictError) Unwrap() error { return e.ServerError }

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNetwork reports whether err is or wraps a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
