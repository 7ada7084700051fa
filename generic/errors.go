/*
errors.go - Centralized error types for the dashboard core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Rejected before any persistence call
  2. Persistence errors - The record store refused a read or write
  3. Conflict errors - Optimistic concurrency detected a newer write
  4. Authorization - Missing session or missing grant

NOT-FOUND IS NOT AN ERROR (mostly):
  Missing settings rows fall back to defaults, missing grant rows mean
  "denied". Store lookups return (nil, nil) for absent rows, like the
  resource engine always did. ErrNotFound is reserved for lookups the
  caller explicitly requires to succeed (a user being edited, a session).

USAGE:
  if errors.Is(err, generic.ErrConcurrentModification) {
      // reload and retry
  }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when an optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNotFound is returned when a required record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownCurrency is returned for codes outside EUR/USD/AED/DZD.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrUnknownEnterprise is returned when a grant names an enterprise that does not exist.
	ErrUnknownEnterprise = errors.New("unknown enterprise")

	// ErrUnauthenticated is returned when no valid session is presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when a page or module grant is missing.
	ErrForbidden = errors.New("forbidden")

	// ErrStaleLoad is returned when a load completed after a newer one was issued.
	ErrStaleLoad = errors.New("stale load discarded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError collects field violations (field -> code).
type ValidationError struct {
	Violations map[string]string
}

// NewValidationError builds a ValidationError with a single violation.
func NewValidationError(field, code string) *ValidationError {
	return &ValidationError{Violations: map[string]string{field: code}}
}

// Add records a violation. Later codes for the same field win.
func (e *ValidationError) Add(field, code string) {
	if e.Violations == nil {
		e.Violations = make(map[string]string)
	}
	e.Violations[field] = code
}

func (e *ValidationError) Empty() bool { return e == nil || len(e.Violations) == 0 }

// OrNil returns e as an error only when it holds violations.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e.Violations[f]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PersistenceError wraps a record store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persist wraps err as a PersistenceError; nil stays nil.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrStaleLoad)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownCurrency) ||
		errors.Is(err, ErrUnknownEnterprise)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
