package shared

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures reported to callers.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindInvalidState      Kind = "InvalidState"
	KindForbidden         Kind = "Forbidden"
	KindValidationFailed  Kind = "ValidationFailed"
	KindInsufficientStock Kind = "InsufficientStock"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
	// ErrInvalidState indicates the operation is not legal from the current status.
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state transition"}
	// ErrForbidden indicates the acting role may not trigger the operation.
	ErrForbidden = &Error{Kind: KindForbidden, Message: "forbidden"}
	// ErrValidation indicates missing or inconsistent input.
	ErrValidation = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	// ErrInsufficientStock indicates fulfillment exceeds stock on hand.
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
)

// Error is a structured, recoverable workflow error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind so callers can use errors.Is(err, shared.ErrNotFound).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// NotFound builds a NotFound error for the given entity.
func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// InvalidState builds an InvalidState error.
func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a Forbidden error.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a ValidationFailed error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock builds an InsufficientStock error.
func InsufficientStock(format string, args ...any) error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or "" when err is not a workflow error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserSafeMessage returns a message that can be shown to end users.
func UserSafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
