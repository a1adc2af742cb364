package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorType represents the category of a service error.
type ErrorType string

const (
	TypeValidation   ErrorType = "validation"   // 400
	TypeUnauthorized ErrorType = "unauthorized" // 401
	TypeForbidden    ErrorType = "forbidden"    // 403
	TypeNotFound     ErrorType = "not_found"    // 404
	TypeConflict     ErrorType = "conflict"     // 409
	TypeInternal     ErrorType = "internal"     // 500
)

// Sentinels for errors.Is checks against a structured *Error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// ErrInvalidTransition marks lifecycle operations that are illegal in the session's status.
// It is reported as a conflict.
var ErrInvalidTransition = errors.New("invalid session transition")

// ErrRecentActivity is returned when an idle session saw activity before it could be abandoned
var ErrRecentActivity = errors.New("session has recent activity")

var sentinels = map[ErrorType]error{
	TypeValidation:   ErrValidation,
	TypeUnauthorized: ErrUnauthorized,
	TypeForbidden:    ErrForbidden,
	TypeNotFound:     ErrNotFound,
	TypeConflict:     ErrConflict,
}

// Error is a structured error whose Message is safe to show to the client.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Type] == target
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validationError(format string, args ...any) *Error {
	return &Error{Type: TypeValidation, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedError(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

func forbiddenError(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

func notFoundError(what string) *Error {
	return &Error{Type: TypeNotFound, Message: what + " not found"}
}

func conflictError(format string, args ...any) *Error {
	return &Error{Type: TypeConflict, Message: fmt.Sprintf(format, args...)}
}

func transitionError(op, status string) *Error {
	return &Error{
		Type:    TypeConflict,
		Message: fmt.Sprintf("cannot %s a %s session", op, status),
		Cause:   ErrInvalidTransition,
	}
}

// asError converts any error into a structured *Error, treating unknown errors as internal.
func asError(err error) *Error {
	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return &Error{Type: TypeInternal, Message: "internal server error", Cause: err}
}

// writeError writes {"error": message} with the status mapped from err.
// Internal errors are logged and never leak their cause to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := asError(err)
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, map[string]interface{}{"error": e.Message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

const maxBodyBytes = 1 << 20

// decodeJSON decodes a request body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validationError("request body is required")
		}
		return validationError("invalid request body")
	}
	return nil
}
