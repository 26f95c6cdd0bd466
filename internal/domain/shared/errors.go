// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "lesson", "activity", "notification"
	Op      string // Operation that failed, e.g., "Start", "Complete"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
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

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Lesson domain errors
var (
	ErrLessonAlreadyStarted   = NewDomainError("lesson", "Start", ErrAlreadyProcessed, "lesson already started")
	ErrLessonNotStarted       = NewDomainError("lesson", "Find", ErrNotFound, "lesson not started")
	ErrLessonAlreadyCompleted = NewDomainError("lesson", "Complete", ErrAlreadyProcessed, "lesson already completed")
	ErrInvalidProgress        = NewDomainError("lesson", "UpdateProgress", ErrValueOutOfRange, "progress percent cannot be negative")
	ErrUnknownLesson          = NewDomainError("lesson", "Validate", ErrInvalidID, "lesson is not in the catalog")
)

// Activity domain errors
var (
	ErrActivityAlreadyCompleted = NewDomainError("activity", "Complete", ErrAlreadyProcessed, "activity already completed")
	ErrInvalidScore             = NewDomainError("activity", "Complete", ErrValueOutOfRange, "score must satisfy 0 <= score <= maxScore and maxScore > 0")
	ErrUnknownActivity          = NewDomainError("activity", "Validate", ErrInvalidID, "activity is not in the catalog")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
)

// Learner state errors
var (
	ErrStateNotFound = NewDomainError("progress", "Load", ErrNotFound, "no saved state for learner")
	ErrInvalidUserID = NewDomainError("progress", "Validate", ErrInvalidID, "invalid user ID")
)

// Auth errors
var (
	ErrInvalidCredentials = NewDomainError("auth", "Login", ErrUnauthorized, "invalid username or password")
	ErrInvalidToken       = NewDomainError("auth", "Verify", ErrUnauthorized, "invalid or expired token")
	ErrInvalid2FACode     = NewDomainError("auth", "Verify2FA", ErrUnauthorized, "invalid two-factor code")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNoOp reports whether the operation was skipped because it was already done
// (lesson already started, lesson or activity already completed).
func IsNoOp(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
