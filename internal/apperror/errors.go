// Package apperror defines the error taxonomy shared by the pipeline,
// the persistence layer and the HTTP surface.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindExtraction  Kind = "extraction"
	KindUpstream    Kind = "upstream"
	KindPersistence Kind = "persistence"
	KindInternal    Kind = "internal"
)

// Error is a classified application error.
// Message is safe to show to API clients; Err carries the underlying cause.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values of the same kind and message,
// so sentinel values like ErrUserNotFound work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, status int, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: cause}
}

// Validation reports bad or missing input (400)
func Validation(msg string) *Error {
	return newError(KindValidation, http.StatusBadRequest, msg, nil)
}

// Unprocessable reports structurally valid input with missing required data (422)
func Unprocessable(msg string, cause error) *Error {
	return newError(KindValidation, http.StatusUnprocessableEntity, msg, cause)
}

// Auth reports a missing or invalid credential (401)
func Auth(msg string) *Error {
	return newError(KindAuth, http.StatusUnauthorized, msg, nil)
}

// NotFound reports a missing resource (404)
func NotFound(msg string) *Error {
	return newError(KindNotFound, http.StatusNotFound, msg, nil)
}

// Extraction reports an unreadable or missing document (500)
func Extraction(msg string, cause error) *Error {
	return newError(KindExtraction, http.StatusInternalServerError, msg, cause)
}

// Upstream reports a failing AI provider call (500)
func Upstream(msg string, cause error) *Error {
	return newError(KindUpstream, http.StatusInternalServerError, msg, cause)
}

// Persistence reports a storage write or read failure (500)
func Persistence(msg string, cause error) *Error {
	return newError(KindPersistence, http.StatusInternalServerError, msg, cause)
}

// Sentinels compared with errors.Is
var (
	ErrUserNotFound       = NotFound("User not found")
	ErrInvoiceNotFound    = NotFound("Invoice not found")
	ErrInvalidCredentials = Auth("Invalid credentials")
	ErrEmailExists        = Validation("Email already exists")
)

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf maps err to an HTTP status code
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
// Unclassified errors never leak their text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
