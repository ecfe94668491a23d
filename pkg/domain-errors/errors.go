// Package domainerrors provides the code-tagged error type used across service
// boundaries. Stores return sentinel errors; services wrap them with a code and
// a caller-safe message so transports can translate without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for boundary translation.
type Code string

const (
	// CodeConfiguration marks a build-time mismatch: a field, step, or rule
	// lookup referenced an id absent from the flow registry. Fatal during
	// development and testing - never user-recoverable.
	CodeConfiguration Code = "configuration_error"

	// CodeValidation marks a per-field schema failure. Surfaced next to the
	// field; blocks submission of that step only.
	CodeValidation Code = "validation_error"

	// CodeRequirementUnsatisfied marks a blocked document submission: a
	// requirement's minimum count is not met yet.
	CodeRequirementUnsatisfied Code = "requirement_unsatisfied"

	// CodeTransport marks a collaborator network failure. Recoverable with
	// retry; session drafts must survive it.
	CodeTransport Code = "transport_error"

	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
)

// Error carries a code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns nil
// so call-sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal for
// errors that never passed through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// MessageOf returns the caller-safe message, or empty when the error is not a
// domain error. Transports use it to decide what to expose.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
