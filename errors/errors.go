package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	sentinel string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so a sentinel wrapped with a cause or a
// custom message still satisfies errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind() == e.kind()
}

func (e *Error) kind() string {
	if e.sentinel != "" {
		return e.sentinel
	}
	return e.Message
}

func newKind(code int, message string) *Error {
	return &Error{Code: code, Message: message, sentinel: message}
}

// Wrap derives a new error of kind e carrying cause. The sentinel itself is
// never mutated.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: cause, sentinel: e.kind()}
}

// WithMessage derives a new error of kind e with a caller-facing message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Code: e.Code, Message: message, Err: e.Err, sentinel: e.kind()}
}

// Order and checkout error kinds
var (
	ErrInvalidRequest       = newKind(http.StatusBadRequest, "Invalid request")
	ErrNotFound             = newKind(http.StatusNotFound, "Not found")
	ErrInvalidState         = newKind(http.StatusBadRequest, "Invalid state")
	ErrPaymentProvider      = newKind(http.StatusInternalServerError, "Payment provider error")
	ErrStorageUnavailable   = newKind(http.StatusInternalServerError, "Storage unavailable")
	ErrInvalidSignature     = newKind(http.StatusBadRequest, "Invalid signature")
	ErrWebhookNotConfigured = newKind(http.StatusInternalServerError, "Webhook secret not configured")
	ErrInternalServer       = newKind(http.StatusInternalServerError, "Internal server error")
)

// From converts any error into an *Error, defaulting to a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}
