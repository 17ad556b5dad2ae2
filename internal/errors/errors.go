package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig      = "CONFIG"
	ErrValidation  = "VALIDATION"
	ErrPlugin      = "PLUGIN"
	ErrConflict    = "CONFLICT"
	ErrEnvironment = "ENVIRONMENT"
	ErrIsolation   = "ISOLATION"
	ErrStorage     = "STORAGE"
	ErrUsage       = "USAGE"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Usagef creates a usage error with a formatted message.
func Usagef(format string, args ...interface{}) *Error {
	return &Error{
		Code:    ErrUsage,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Summary returns the message and cause on one line, without the suggestion.
func (e *Error) Summary() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Summary(e.Cause)
}

// Summary renders any error on one line. Structured errors use their Summary.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var pjErr *Error
	if errors.As(err, &pjErr) {
		return pjErr.Summary()
	}
	return strings.TrimSpace(err.Error())
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pjErr *Error
	if errors.As(err, &pjErr) {
		return pjErr.Code == code
	}
	return false
}

// IsFatal reports whether err must terminate the process instead of being
// contained at a plugin or field boundary.
func IsFatal(err error) bool {
	return IsCode(err, ErrIsolation) || IsCode(err, ErrStorage)
}

// ExitCode maps an error returned from command execution to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
