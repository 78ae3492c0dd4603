// Package constants provides shared constants used throughout the glosa codebase.
// This includes timeouts, retry policy defaults, batch limits, and other
// configuration values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// AuditCallTimeout is the timeout applied to a single narrative request
	AuditCallTimeout = 2 * time.Minute

	// RunTimeout is the overall timeout for a full reconciliation run
	RunTimeout = 30 * time.Minute
)

// Retry constants define the audit adapter's retry policy defaults
const (
	// MaxRetryAttempts is the total number of attempts for a failing audit call
	MaxRetryAttempts = 3

	// RetryBaseDelay is the base backoff duration between audit retries
	RetryBaseDelay = 2 * time.Second

	// RetryMaxDelay is the backoff cap between audit retries
	RetryMaxDelay = 10 * time.Second
)

// Batch constants bound how divergence records are grouped for the narrative service
const (
	// DefaultBatchMaxItems is the maximum number of divergence records per batch
	DefaultBatchMaxItems = 20

	// DefaultBatchMaxBytes is the estimated request payload budget per batch
	DefaultBatchMaxBytes = 16 * 1024

	// DefaultAuditWorkers is the number of batches in flight; 1 keeps the
	// pipeline sequential and progress strictly monotonic
	DefaultAuditWorkers = 1
)

// Matching and classification defaults
const (
	// DefaultTolerance is the amount difference (in currency units, as a
	// decimal string) inside which two matched entries are considered equal
	DefaultTolerance = "0.01"

	// DefaultReportThreshold disables the sieve's noise filter; divergences
	// of any size are forwarded for narrative audit
	DefaultReportThreshold = "0"

	// DefaultFuzzyThreshold is the minimum similarity for a fuzzy synonym hit
	DefaultFuzzyThreshold = 0.90
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Default values
const (
	// DefaultModel is the narrative model used when none is configured
	DefaultModel = "gemini-2.0-flash"

	// DefaultConfigName is the config file name searched in $HOME and cwd
	DefaultConfigName = ".glosa"
)
