/*
errors.go - Centralized error types for the engine

ERROR CATEGORIES:
  1. Validation skips   - a row without an ILIT name (counted, never fatal)
  2. Coercion misses    - never errors; the field is simply absent
  3. Persistence errors - wrapped with ErrPersistence
  4. Configuration      - lead time below 1, rejected before it is stored

USAGE:
    if errors.Is(err, ilit.ErrPolicyNotFound) {
        // 404
    }
*/
package ilit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrInvalidLeadDays is returned when reminderLeadDays is below 1.
	ErrInvalidLeadDays = errors.New("reminder lead days must be at least 1")

	// ErrMissingIlitName is returned by the manual-entry path when the trust name is empty.
	ErrMissingIlitName = errors.New("ilit name is required")

	// ErrInvalidStatus is returned when a status override names an unknown status.
	ErrInvalidStatus = errors.New("unknown status")

	// ErrPersistence wraps store failures surfaced by the service.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnsupportedFormat is returned for uploads that are neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptySheet is returned when a source has no header row.
	ErrEmptySheet = errors.New("sheet has no header row")

	// ErrNegativeAmount is returned by the manual-entry path for premiums below zero.
	ErrNegativeAmount = errors.New("premium amount must not be negative")

	// ErrUnknownField is returned when a manual column mapping names a field that doesn't exist.
	ErrUnknownField = errors.New("unknown canonical field")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LeadDaysError carries the rejected lead time.
type LeadDaysError struct {
	Value int
}

func (e *LeadDaysError) Error() string {
	return fmt.Sprintf("reminder lead days must be at least 1, got %d", e.Value)
}

func (e *LeadDaysError) Unwrap() error { return ErrInvalidLeadDays }

// RecordFailure is one record that could not be written during a bulk update.
type RecordFailure struct {
	ID  string
	Err error
}

func (e *RecordFailure) Error() string {
	return fmt.Sprintf("policy %s: %v", e.ID, e.Err)
}

func (e *RecordFailure) Unwrap() error { return e.Err }

// MappingError reports a manual mapping that points at a header the sheet does not have.
type MappingError struct {
	Field  Field
	Header string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping for %s: header %q not found in sheet", e.Field, e.Header)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var mapping *MappingError
	return errors.Is(err, ErrInvalidLeadDays) ||
		errors.Is(err, ErrMissingIlitName) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptySheet) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrUnknownField) ||
		errors.As(err, &mapping)
}
