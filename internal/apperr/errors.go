// Package apperr defines the error taxonomy shared by the presence,
// attendance, and identity components.
package apperr

import "errors"

// Error is a classified failure returned to callers of the core.
type Error struct {
	Code    Code   // Machine-readable kind
	Message string // Human-readable detail for logs and API bodies
	Cause   error  // Wrapped underlying error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so the
// per-kind sentinels below match any error of that kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error of the given kind.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput       = &Error{Code: CodeInvalidInput}
	ErrUnknownSubject     = &Error{Code: CodeUnknownSubject}
	ErrUnknownActor       = &Error{Code: CodeUnknownActor}
	ErrWrongGroup         = &Error{Code: CodeWrongGroup}
	ErrAlreadyOnBoard     = &Error{Code: CodeAlreadyOnBoard}
	ErrNotOnBoard         = &Error{Code: CodeNotOnBoard}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
)

// CodeOf returns the code of the first *Error in err's chain, or
// CodeUnknown when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Retryable reports whether a caller may safely retry the failed call.
// Only storage failures qualify; validation failures are terminal.
func Retryable(err error) bool {
	return CodeOf(err) == CodeStorageUnavailable
}
