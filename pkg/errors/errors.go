// Package errors provides structured error types for cassinigraph.
//
// Errors carry a machine-readable [Code] so that the CLI and the HTTP service
// can map them to exit statuses and response codes without string matching.
//
// # Error Codes
//
//   - INVALID_*: input validation failures, raised before any pipeline stage
//   - UNKNOWN_METHOD: a method name absent from the method table
//   - SOURCE_FAILURE: the feature query failed
//   - EXPORT_FAILURE: a sink could not persist a component
//   - CANCELED: neighbor discovery was aborted by its context
//   - INTERNAL_ERROR: anything unexpected
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidThreshold, "threshold must be positive, got %v", t)
//	if errors.Is(err, errors.ErrCodeInvalidThreshold) {
//	    // usage error
//	}
//
//	err := errors.Wrap(errors.ErrCodeExport, ioErr, "write component %d", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidThreshold Code = "INVALID_THRESHOLD"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeUnknownMethod    Code = "UNKNOWN_METHOD"

	// Stage failures
	ErrCodeSource   Code = "SOURCE_FAILURE"
	ErrCodeExport   Code = "EXPORT_FAILURE"
	ErrCodeCanceled Code = "CANCELED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsValidation reports whether err is an input validation error, i.e. one
// that is the caller's fault and is detected before any stage runs.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidThreshold, ErrCodeInvalidConfig,
		ErrCodeInvalidFormat, ErrCodeInvalidPath, ErrCodeUnknownMethod:
		return true
	}
	return false
}
