package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures coming out of the external collaborators.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "AuthenticationError"
	KindNetwork        ErrorKind = "NetworkError"
	KindTemplate       ErrorKind = "TemplateError"
	KindRateLimit      ErrorKind = "ProviderRateLimitError"
	KindValidation     ErrorKind = "ValidationError"

	// KindInternal is reported for errors that were never classified.
	KindInternal ErrorKind = "InternalError"
)

// Error carries a kind alongside the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
