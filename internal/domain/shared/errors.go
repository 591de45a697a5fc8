// Package shared contains common domain types, errors and events used across
// all progression domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidState  = errors.New("invalid state")
	ErrCorrupted     = errors.New("persisted state corrupted")
	ErrStorage       = errors.New("storage failure")
	ErrNotOwned      = errors.New("item not owned")
	ErrEmptyUserID   = errors.New("user id cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "achievement", "streak", "challenge", "cosmetic"
	Op      string // operation that failed
	Kind    error  // base error for errors.Is()
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both Kind and Err.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// NotFoundf builds a not-found DomainError for an unknown identifier.
func NotFoundf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf(format, args...))
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorrupted checks if the error reports a structurally invalid blob.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorrupted)
}

// IsValidation checks if the error is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyUserID) ||
		errors.Is(err, ErrInvalidFormat)
}
