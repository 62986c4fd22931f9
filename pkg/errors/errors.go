package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidScore    = New("INVALID_SCORE", http.StatusBadRequest, "score must be between 0 and 100")
	ErrNoOpChange      = New("NO_OP_CHANGE", http.StatusBadRequest, "proposed value equals the current score")
	ErrMissingRemarks  = New("MISSING_REMARKS", http.StatusBadRequest, "coordinator remarks required")
	ErrAlreadyResolved = New("ALREADY_RESOLVED", http.StatusConflict, "change request already resolved")
	ErrAlreadyClosed   = New("ALREADY_CLOSED", http.StatusConflict, "phase already closed")
	ErrPhaseNotClosed  = New("PHASE_NOT_CLOSED", http.StatusPreconditionFailed, "phase has no closed results")
	ErrConcurrency     = New("CONCURRENCY_CONFLICT", http.StatusConflict, "concurrent modification detected, retry the operation")
	ErrTransaction     = New("TRANSACTION_FAILURE", http.StatusInternalServerError, "transaction failed and was rolled back")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
