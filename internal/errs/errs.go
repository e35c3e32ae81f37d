// Package errs defines the error kinds shared by the ledger engine.
//
// Specific errors wrap one of the kinds, so callers can match either the
// specific error or the kind with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoTaskAvailable   = errors.New("no task available")
	ErrInvalidTransition = errors.New("invalid transition")
	errUnclassified      = errors.New("unclassified")
)

// New returns an error with the given message that matches kind.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}

// Invalidf returns an ErrInvalidInput error with a formatted message.
func Invalidf(format string, args ...any) error {
	return New(ErrInvalidInput, fmt.Sprintf(format, args...))
}

// KindOf returns the kind err belongs to, or an "unclassified" error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrNotFound,
		ErrConflict,
		ErrInsufficientFunds,
		ErrNoTaskAvailable,
		ErrInvalidTransition,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return errUnclassified
}

// IsClassified reports whether err belongs to one of the known kinds.
func IsClassified(err error) bool {
	return !errors.Is(KindOf(err), errUnclassified)
}

// Message returns the message of the innermost classified error in err's
// chain, without the wrapping context, or "" when there is none.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}

	return ""
}
