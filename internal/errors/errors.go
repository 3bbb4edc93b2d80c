// Package errors classifies failures by how they propagate: a QueryFailed
// trigger never aborts its monitor, a Transient store error is retried
// before becoming Fatal, and so on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the engine and sweeper propagate it.
type Kind string

const (
	KindValidation  Kind = "Validation"
	KindAuthZ       Kind = "AuthZ"
	KindNotFound    Kind = "NotFound"
	KindQueryFailed Kind = "QueryFailed"
	KindTransient   Kind = "Transient"
	KindFatal       Kind = "Fatal"
	KindCancelled   Kind = "Cancelled"
)

func (k Kind) httpStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthZ:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindQueryFailed:
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a classified application error carrying an optional cause
// and structured details.
type AppError struct {
	Kind       Kind                   `json:"kind,omitempty"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError carrying an explicit HTTP status, used by the
// repository layer where the failure doesn't map to one of the engine's
// Kind values.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Details: make(map[string]interface{})}
}

// Wrap wraps an existing error with additional context and an HTTP status.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	e := New(code, message, httpStatus)
	e.Cause = err
	return e
}

// NewKind creates an AppError classified by Kind, the constructor used
// throughout the monitor execution and sweeper code paths.
func NewKind(kind Kind, message string) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       string(kind),
		Message:    message,
		HTTPStatus: kind.httpStatus(),
		Details:    make(map[string]interface{}),
	}
}

// WrapKind wraps an existing error as an AppError classified by Kind.
func WrapKind(err error, kind Kind, message string) *AppError {
	e := NewKind(kind, message)
	e.Cause = err
	return e
}

// IsKind reports whether err is an AppError of the given Kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// WithField attaches a single structured detail to the error.
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
