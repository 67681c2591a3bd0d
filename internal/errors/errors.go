// Package errors provides the sentinel errors and wrapping utilities
// shared by every tickvault package.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - Constructors that attach context to sentinels
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Storage errors
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrStorageTimeout = errors.New("storage timeout")
	ErrClosed         = errors.New("store is closed")
	ErrDatabase       = errors.New("database error")

	// Query errors
	ErrPartialScan   = errors.New("partial scan")
	ErrUnknownLayout = errors.New("unknown layout")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrNoPartition   = errors.New("no partition boundaries configured")

	// Analytics errors
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidWindow    = errors.New("invalid window size")

	// Benchmark errors
	ErrRowCountMismatch = errors.New("row count mismatch")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidBar    = errors.New("invalid bar")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsTimeout returns true if err is a storage timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrStorageTimeout)
}

// IsRetriable returns true if the error is potentially retriable.
// Only transient conditions qualify; data errors never do.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrStorageTimeout)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidBar) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsPartial returns true if err indicates an aborted multi-unit scan.
func IsPartial(err error) bool {
	return errors.Is(err, ErrPartialScan)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewDuplicateKey creates a duplicate-key error for a (ticker, date) pair.
func NewDuplicateKey(table, key string) error {
	return fmt.Errorf("%s: key %s: %w", table, key, ErrDuplicateKey)
}

// NewStorageTimeout creates a storage timeout error for a scan unit.
func NewStorageTimeout(table string, timeout time.Duration) error {
	return fmt.Errorf("%s: deadline of %s exceeded: %w", table, timeout, ErrStorageTimeout)
}

// NewPartialScan creates a partial-scan error recording how far the
// plan got before cancellation.
func NewPartialScan(completed, total int) error {
	return fmt.Errorf("cancelled after %d of %d units: %w", completed, total, ErrPartialScan)
}

// NewInsufficientData creates an insufficient-data error.
func NewInsufficientData(need, got int) error {
	return fmt.Errorf("need at least %d records, have %d: %w", need, got, ErrInsufficientData)
}

// NewRowCountMismatch creates a row-count mismatch error for a layout
// whose count diverged from the reference count.
func NewRowCountMismatch(layout string, want, got int64) error {
	return fmt.Errorf("layout %s returned %d rows, expected %d: %w", layout, got, want, ErrRowCountMismatch)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
