package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP translation boundary.
type Kind string

const (
	KindValidation Kind = "ValidationError" // caller input failed a precondition
	KindAuth       Kind = "AuthError"       // identity could not be established
	KindForbidden  Kind = "ForbiddenError"  // identity established, action disallowed
	KindNotFound   Kind = "NotFoundError"   // referenced entity does not exist
	KindConflict   Kind = "ConflictError"   // uniqueness would be violated
	KindInternal   Kind = "InternalError"   // anything untyped
)

// ErrNotFound is returned (usually wrapped) by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// Error is a typed error carrying a machine-distinguishable kind and a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newError(KindValidation, format, args...) }
func Auth(format string, args ...any) *Error       { return newError(KindAuth, format, args...) }
func Forbidden(format string, args ...any) *Error  { return newError(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error   { return newError(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return newError(KindConflict, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client safe message for err. Untyped errors never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps err to the status code surfaced by the server.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
