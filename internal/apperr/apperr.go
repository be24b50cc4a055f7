// Package apperr defines the error taxonomy shared by the repository, service
// and handler layers. Storage-engine errors never cross the repository
// boundary; they are translated into one of these kinds.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrTransientExternal    = errors.New("external service unavailable")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrUnauthorized         = errors.New("unauthorized")
)

// Error carries a kind plus the operation that failed.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newf(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return newf(ErrNotFound, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) error {
	return newf(ErrConflict, op, format, args...)
}

func Validation(op, format string, args ...interface{}) error {
	return newf(ErrValidation, op, format, args...)
}

func InsufficientHoldings(op, format string, args ...interface{}) error {
	return newf(ErrInsufficientHoldings, op, format, args...)
}

func Unauthorized(op, format string, args ...interface{}) error {
	return newf(ErrUnauthorized, op, format, args...)
}

// External wraps a collaborator failure.
func External(op string, err error) error {
	return &Error{Kind: ErrTransientExternal, Op: op, Err: err}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err, or nil when err is untyped.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrInsufficientHoldings, ErrUnauthorized, ErrTransientExternal} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
