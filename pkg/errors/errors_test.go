package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/labops/glosa/pkg/errors"
)

func TestMalformedRowError(t *testing.T) {
	err := &pkgerrors.MalformedRowError{
		Source: "A", Index: 3, Field: "amount", Value: "twelve",
		Message: "not a decimal",
	}
	assert.Equal(t, `malformed row 3 in ledger A: field amount="twelve": not a decimal`, err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Field: "tolerance", Message: "must not be negative"}
		assert.Equal(t, "validation failed for field tolerance: must not be negative", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "bad input"}
		assert.Equal(t, "validation failed: bad input", err.Error())
	})
}

func TestStoreError(t *testing.T) {
	base := errors.New("connection refused")
	err := pkgerrors.WrapStore("synonyms", base)

	assert.True(t, pkgerrors.IsStoreUnavailable(err))
	assert.True(t, errors.Is(err, base))
	assert.Contains(t, err.Error(), "synonym store synonyms")

	assert.NoError(t, pkgerrors.WrapStore("synonyms", nil))
}

func TestTransportError(t *testing.T) {
	t.Run("retryable", func(t *testing.T) {
		err := pkgerrors.WrapTransport("narrative", 503, errors.New("upstream unavailable"))
		assert.True(t, pkgerrors.IsRetryable(err))
		assert.False(t, errors.Is(err, pkgerrors.ErrRateLimited))
	})

	t.Run("rate limited", func(t *testing.T) {
		err := pkgerrors.WrapTransport("narrative", 429, errors.New("quota exhausted"))
		assert.True(t, errors.Is(err, pkgerrors.ErrRateLimited))
		assert.True(t, pkgerrors.IsRetryable(err))
	})

	t.Run("wrapped stays retryable", func(t *testing.T) {
		err := fmt.Errorf("batch 2: %w", pkgerrors.WrapTransport("narrative", 500, errors.New("boom")))
		assert.True(t, pkgerrors.IsRetryable(err))
	})

	t.Run("timeout sentinel", func(t *testing.T) {
		err := &pkgerrors.TransportError{Message: "deadline exceeded", Err: pkgerrors.ErrTimeout}
		assert.True(t, pkgerrors.IsRetryable(err))
		assert.True(t, errors.Is(err, pkgerrors.ErrTimeout))
	})
}

func TestSchemaError(t *testing.T) {
	err := pkgerrors.WrapSchema(4, errors.New("response is not a JSON array"))

	assert.True(t, pkgerrors.IsSchemaViolation(err))
	assert.False(t, pkgerrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "batch 4")
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, pkgerrors.IsCanceled(context.Canceled))
	assert.True(t, pkgerrors.IsCanceled(fmt.Errorf("run: %w", pkgerrors.ErrCanceled)))
	assert.False(t, pkgerrors.IsCanceled(errors.New("other")))
}

func TestConfigError(t *testing.T) {
	err := &pkgerrors.ConfigError{Component: "audit", Message: "GEMINI_API_KEY is required"}
	assert.Equal(t, "configuration error in audit: GEMINI_API_KEY is required", err.Error())
}
