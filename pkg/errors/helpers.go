package errors

import (
	"errors"
)

// As is a wrapper around errors.As that works with our Error type
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	if err == nil {
		return CodeOK
	}

	var customErr *Error
	if errors.As(err, &customErr) {
		return customErr.Code
	}

	return CodeInternal
}

// GetMessage extracts the user-facing message from an error
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr *Error
	if errors.As(err, &customErr) {
		if customErr.Cause != nil && customErr.Code == CodeIO {
			return customErr.Message + ": " + customErr.Cause.Error()
		}
		return customErr.Message
	}

	return err.Error()
}

// IsFormat checks if an error is a format error
func IsFormat(err error) bool {
	return GetCode(err) == CodeFormat
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return GetCode(err) == CodeValidation
}

// IsIO checks if an error is an I/O error
func IsIO(err error) bool {
	return GetCode(err) == CodeIO
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// IsFailedPrecondition checks if an error is a failed precondition error
func IsFailedPrecondition(err error) bool {
	return GetCode(err) == CodeFailedPrecondition
}
