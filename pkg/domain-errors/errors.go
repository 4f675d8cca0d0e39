// Package domainerrors provides coded domain errors. Services construct these
// (or wrap store sentinels into them) so callers can branch on stable codes
// while the message stays human-renderable.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable; messages are not.
type Code string

const (
	// CodeNotFound: the referenced form instance or discrepancy does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState: the operation is not valid from the current lifecycle
	// state, or a discrepancy is already resolved.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalidInput: missing or malformed caller input.
	CodeInvalidInput Code = "invalid_input"
	// CodeAuthorizationDenied: the entry authorization gate rejected the caller.
	CodeAuthorizationDenied Code = "authorization_denied"
	// CodePreconditionFailed: a gate condition holds, e.g. open discrepancies
	// remain at finalize time.
	CodePreconditionFailed Code = "precondition_failed"
	// CodeTimeout: the transaction scope was abandoned before completion.
	CodeTimeout Code = "timeout"
	// CodeInternal: unexpected infrastructure failure; safe to retry.
	CodeInternal Code = "internal"
)

// DomainError carries a code alongside a human-readable message. It may wrap
// an underlying infrastructure error.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.cause }

// New constructs a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Newf constructs a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with the
// given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// raised outside the domain layer.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
