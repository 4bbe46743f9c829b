// Package errors provides the structured error type shared by the editor,
// its storage layer and every front-end.
//
// Errors carry a Code so front-ends can decide how to report them:
//
//	err := errors.Formatf("header type %q is not %s", got, want)
//	err := errors.Validation("rate must be between 1 and 10000").
//	    WithMeta("field", "Drops")
//
//	if errors.IsValidation(err) {
//	    // keep the stored record, show the message
//	}
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// WithMeta adds metadata to the error.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New creates a new error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error, preserving its code if it's an Error.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Code:    existingErr.Code,
			Message: message,
			Cause:   err,
			Meta:    existingErr.Meta,
		}
	}

	return &Error{
		Code:    CodeInternal,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific code.
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Format creates a format error: the input is not the expected document.
func Format(message string) *Error {
	return New(CodeFormat, message)
}

// Formatf creates a format error with a formatted message.
func Formatf(format string, args ...any) *Error {
	return Newf(CodeFormat, format, args...)
}

// Validation creates a validation error for a rejected field value.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// IO wraps a filesystem failure.
func IO(err error, message string) *Error {
	return WrapWithCode(err, CodeIO, message)
}

// IOf wraps a filesystem failure with a formatted message.
func IOf(err error, format string, args ...any) *Error {
	return WrapWithCode(err, CodeIO, fmt.Sprintf(format, args...))
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// InvalidArgumentf creates an invalid argument error with a formatted message.
func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// FailedPrecondition creates an error for an operation that cannot run in the
// current editor state.
func FailedPrecondition(message string) *Error {
	return New(CodeFailedPrecondition, message)
}
