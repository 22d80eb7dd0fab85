package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the core wraps exactly one of these.
var (
	ErrNotFound            = errors.New("not found")
	ErrBusinessRule        = errors.New("business rule violation")
	ErrValidation          = errors.New("validation error")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// Error is a typed failure carrying its kind and a human-readable reason
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound reports a missing match, team, user, rating or alert
func NotFound(resource string, id int64) error {
	return &Error{Kind: ErrNotFound, Reason: fmt.Sprintf("%s %d not found", resource, id)}
}

// BusinessRule reports a structurally valid request that breaks a domain rule
func BusinessRule(format string, args ...any) error {
	return &Error{Kind: ErrBusinessRule, Reason: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

// Conflict reports a lost race with a concurrent operation
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConcurrencyConflict, Reason: fmt.Sprintf(format, args...)}
}

// ValidateID rejects non-positive identifiers
func ValidateID(resource string, id int64) error {
	if id <= 0 {
		return Validation("%s id must be a positive integer, got %d", resource, id)
	}
	return nil
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports errors caused by the request rather than the server
func IsClientError(err error) bool {
	return errors.Is(err, ErrBusinessRule) || errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidRequest)
}

// IsRetryable reports errors the caller may retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// Reason returns the human-readable part of a domain error, or the full message
// for anything else.
func Reason(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}
