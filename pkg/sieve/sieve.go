// Package sieve selects which divergence records are worth the cost of a
// narrative explanation. It only controls what is forwarded to the audit
// pipeline; the classifier's records and summary are never touched, so the
// financial picture is identical whether or not the audit stage runs.
package sieve

import (
	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/classify"
)

// Sieve filters divergence records before batching.
type Sieve struct {
	reportThreshold decimal.Decimal
}

// New creates a Sieve. Value divergences with an absolute delta below the
// reporting threshold are treated as rounding noise and skipped; a zero
// threshold forwards every divergence.
func New(reportThreshold decimal.Decimal) *Sieve {
	return &Sieve{reportThreshold: reportThreshold}
}

// Filter returns the records that should be sent for narrative audit, in
// input order. The input slice is never modified.
func (s *Sieve) Filter(records []classify.Record) []classify.Record {
	forwarded := make([]classify.Record, 0, len(records))

	for _, r := range records {
		if !r.Category.IsDivergence() {
			continue
		}
		if r.Category == classify.ValueDivergent && s.isNoise(r) {
			continue
		}
		forwarded = append(forwarded, r)
	}

	return forwarded
}

// isNoise reports whether a value divergence falls under the reporting
// threshold.
func (s *Sieve) isNoise(r classify.Record) bool {
	if s.reportThreshold.IsZero() || r.Delta == nil {
		return false
	}
	return r.Delta.Abs().LessThan(s.reportThreshold)
}
