// Package apierror provides the error taxonomy shared by services and
// handlers, and the JSON envelope every response goes out in. Clients only
// ever see the message of 4xx errors; 5xx details stay in the logs.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	KindUpstream Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindPartialImport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindPartialImport:
		return "partial_import"
	default:
		return "upstream"
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// CommittedBatches is set on KindPartialImport.
	CommittedBatches int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// Upstream wraps a store or provider failure.
func Upstream(op string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: op, Cause: cause}
}

// PartialImport reports a failure after some batches were already committed.
func PartialImport(committed int, cause error) *Error {
	return &Error{
		Kind:             KindPartialImport,
		Message:          fmt.Sprintf("import failed after %d committed batches", committed),
		Cause:            cause,
		CommittedBatches: committed,
	}
}

// KindOf returns the kind of err; unclassified errors are upstream failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client.
func PublicMessage(err error) string {
	var e *Error
	if StatusOf(err) < http.StatusInternalServerError && errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

// New builds a failure envelope.
func New(msg string) Response {
	return Response{Success: false, Error: msg}
}
