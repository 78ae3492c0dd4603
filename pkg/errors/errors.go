// Package errors provides custom error types for the glosa system.
// These errors enable better error handling, programmatic error checking,
// and improved debugging throughout the application.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
var As = errors.As

// Common sentinel errors for the glosa system
var (
	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates that the synonym store could not be read
	ErrStoreUnavailable = errors.New("synonym store unavailable")

	// ErrRateLimited indicates that the narrative API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrSchemaViolation indicates that the narrative service returned a
	// response that does not satisfy the audit contract
	ErrSchemaViolation = errors.New("audit response schema violation")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")
)

// MalformedRowError reports an input row that could not be converted into a
// LedgerEntry. Rows carrying this error are skipped, never fatal.
type MalformedRowError struct {
	Source  string
	Index   int
	Field   string
	Value   string
	Message string
}

// Error implements the error interface
func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row %d in ledger %s: field %s=%q: %s",
		e.Index, e.Source, e.Field, e.Value, e.Message)
}

// Is implements errors.Is support
func (e *MalformedRowError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ValidationError represents a programming-contract violation
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StoreError represents a failure reading the synonym store. The
// canonicalizer degrades to identity mode when it sees one.
type StoreError struct {
	Store   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("synonym store %s: %s", e.Store, e.Message)
	}
	return fmt.Sprintf("synonym store: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// TransportError represents a transient failure talking to the narrative
// service: timeouts, rate limiting, 5xx responses. Transport errors are
// retryable under the adapter's retry policy.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("audit transport error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("audit transport error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	return false
}

// SchemaError represents a narrative response that parsed as transport-level
// success but violates the expected JSON contract. Retrying the same input is
// assumed futile, so schema errors are never retried.
type SchemaError struct {
	Batch   int
	Message string
	Err     error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("audit schema error in batch %d: %s", e.Batch, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsRetryable reports whether an audit failure should be retried. Only
// transport-level failures qualify; schema violations and cancellations
// never do.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

// IsSchemaViolation checks if an error is an audit contract violation
func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrSchemaViolation)
}

// IsStoreUnavailable checks if an error means the synonym store was unreadable
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// Helper wrapping functions for common patterns

// WrapStore wraps an error as a StoreError
func WrapStore(store string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Store: store, Message: err.Error(), Err: err}
}

// WrapTransport wraps an error as a TransportError
func WrapTransport(endpoint string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// WrapSchema wraps an error as a SchemaError for the given batch
func WrapSchema(batch int, err error) error {
	if err == nil {
		return nil
	}
	return &SchemaError{Batch: batch, Message: err.Error(), Err: err}
}
