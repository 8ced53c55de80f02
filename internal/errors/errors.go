// Package errors defines the typed error kinds used across the application.
// Callers branch on the kind to decide retry and fallback policy: validation
// failures are never retried, storage failures are surfaced to the transport
// layer which degrades to a context-free reply.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeValidation = "VALIDATION"
	CodeStorage    = "STORAGE"
	CodeAPI        = "API"
	CodeConfig     = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the application error code carried by err,
// or CodeUnknown if it carries none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// NewValidationError reports malformed input: empty content, unknown
// category or role. The offending turn or fact is not persisted.
func NewValidationError(message string, cause error) error {
	return &Error{code: CodeValidation, message: message, err: cause}
}

// NewStorageError reports a backing-store failure. The core performs no
// retries; the caller decides the fallback.
func NewStorageError(message string, cause error) error {
	return &Error{code: CodeStorage, message: message, err: cause}
}

// NewAPIError reports a failure talking to the external LLM service.
func NewAPIError(message string, cause error) error {
	return &Error{code: CodeAPI, message: message, err: cause}
}

// NewConfigError reports invalid or unloadable configuration.
func NewConfigError(message string, cause error) error {
	return &Error{code: CodeConfig, message: message, err: cause}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool {
	return Code(err) == CodeStorage
}
