package glosa

import (
	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/canonical"
	"github.com/labops/glosa/pkg/pipeline"
)

// Option is a function that configures a reconciliation run
type Option func(*config) error

// config holds the assembled settings for one run.
type config struct {
	tolerance       decimal.Decimal
	reportThreshold decimal.Decimal
	fuzzy           bool
	fuzzyThreshold  float64
	synonymStore    canonical.Store
	auditClient     audit.Client
	batchMaxItems   int
	batchMaxBytes   int
	auditWorkers    int
	instructions    string
	onProgress      pipeline.ProgressFunc
}

// WithTolerance sets the absolute amount difference inside which a matched
// pair is classified equal.
func WithTolerance(tolerance decimal.Decimal) Option {
	return func(c *config) error {
		c.tolerance = tolerance
		return nil
	}
}

// WithReportThreshold sets the sieve's noise floor: value divergences with a
// smaller absolute delta are excluded from narrative audit. Zero disables
// the filter.
func WithReportThreshold(threshold decimal.Decimal) Option {
	return func(c *config) error {
		c.reportThreshold = threshold
		return nil
	}
}

// WithFuzzyMatching enables fuzzy synonym resolution at the given
// similarity threshold.
func WithFuzzyMatching(threshold float64) Option {
	return func(c *config) error {
		c.fuzzy = true
		c.fuzzyThreshold = threshold
		return nil
	}
}

// WithSynonymStore configures the synonym store read once per run. Without
// one the canonicalizer runs in identity mode.
func WithSynonymStore(store canonical.Store) Option {
	return func(c *config) error {
		c.synonymStore = store
		return nil
	}
}

// WithAuditClient configures the narrative service client. Without one the
// audit stage is skipped and every divergence stays unexplained.
func WithAuditClient(client audit.Client) Option {
	return func(c *config) error {
		c.auditClient = client
		return nil
	}
}

// WithBatchLimits bounds audit batches by item count and estimated payload
// size.
func WithBatchLimits(maxItems, maxBytes int) Option {
	return func(c *config) error {
		c.batchMaxItems = maxItems
		c.batchMaxBytes = maxBytes
		return nil
	}
}

// WithAuditWorkers allows up to n batches in flight. Results always merge
// in batch order; 1 keeps dispatch sequential.
func WithAuditWorkers(n int) Option {
	return func(c *config) error {
		c.auditWorkers = n
		return nil
	}
}

// WithInstructions overrides the narrative instruction template.
func WithInstructions(instructions string) Option {
	return func(c *config) error {
		c.instructions = instructions
		return nil
	}
}

// WithProgress registers a callback for audit pipeline progress steps.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return func(c *config) error {
		c.onProgress = fn
		return nil
	}
}
