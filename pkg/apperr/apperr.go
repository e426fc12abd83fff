package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a domain error that carries the HTTP status and the message
// shown to the client. Err holds the underlying cause for logs only.
type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e that records err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{Status: e.Status, Message: e.Message, Err: err}
}

func New(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

func Validation(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

// Conflict reports a duplicate relationship (membership, attendance, like).
// Clients have always received these as 400.
func Conflict(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message)
}

func Unauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, message)
}

func TooManyRequests(message string) *AppError {
	return New(http.StatusTooManyRequests, message)
}

// Internal wraps an unexpected failure. Its message never reaches the client verbatim.
func Internal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: InternalMessage, Err: err}
}

const InternalMessage = "internal server error"

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for anything that is not an AppError.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	if appErr, ok := As(err); ok && appErr.Status < http.StatusInternalServerError {
		return appErr.Message
	}
	return InternalMessage
}

// IsStatus reports whether err is an AppError with the given status.
func IsStatus(err error, status int) bool {
	appErr, ok := As(err)
	return ok && appErr.Status == status
}
