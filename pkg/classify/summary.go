package classify

import (
	"github.com/shopspring/decimal"
)

// CategoryStats aggregates one category's records.
type CategoryStats struct {
	Count   int             `json:"count" yaml:"count"`
	AmountA decimal.Decimal `json:"amount_a" yaml:"amount_a"`
	AmountB decimal.Decimal `json:"amount_b" yaml:"amount_b"`
	Delta   decimal.Decimal `json:"delta" yaml:"delta"`
}

// Summary is the deterministic financial picture of a run. Fields are
// explicit rather than keyed by map so serialization order never depends on
// runtime iteration.
type Summary struct {
	Equal          CategoryStats `json:"equal" yaml:"equal"`
	ValueDivergent CategoryStats `json:"value_divergent" yaml:"value_divergent"`
	MissingInA     CategoryStats `json:"missing_in_a" yaml:"missing_in_a"`
	MissingInB     CategoryStats `json:"missing_in_b" yaml:"missing_in_b"`

	// TotalA and TotalB are the full ledger sums of classified entries.
	TotalA decimal.Decimal `json:"total_a" yaml:"total_a"`
	TotalB decimal.Decimal `json:"total_b" yaml:"total_b"`

	// LedgerDelta = TotalA - TotalB. Explained is the signed portion of that
	// delta accounted for by divergences: one-sided amounts plus divergent
	// pair deltas. Residual is what remains, the accumulated within-tolerance
	// deltas of equal pairs.
	LedgerDelta decimal.Decimal `json:"ledger_delta" yaml:"ledger_delta"`
	Explained   decimal.Decimal `json:"explained" yaml:"explained"`
	Residual    decimal.Decimal `json:"residual" yaml:"residual"`
}

// Stats returns the aggregate for a category.
func (s *Summary) Stats(c Category) CategoryStats {
	switch c {
	case Equal:
		return s.Equal
	case ValueDivergent:
		return s.ValueDivergent
	case MissingInA:
		return s.MissingInA
	case MissingInB:
		return s.MissingInB
	}
	return CategoryStats{}
}

// Divergences returns the total number of records needing explanation.
func (s *Summary) Divergences() int {
	return s.ValueDivergent.Count + s.MissingInA.Count + s.MissingInB.Count
}

// Summarize folds classified records into the deterministic summary.
// Record order does not affect the result: decimal addition is exact, and
// every derived metric is computed from the accumulated totals.
func Summarize(records []Record) Summary {
	var s Summary

	for _, r := range records {
		stats := s.Stats(r.Category)
		stats.Count++
		if r.AmountA != nil {
			stats.AmountA = stats.AmountA.Add(*r.AmountA)
			s.TotalA = s.TotalA.Add(*r.AmountA)
		}
		if r.AmountB != nil {
			stats.AmountB = stats.AmountB.Add(*r.AmountB)
			s.TotalB = s.TotalB.Add(*r.AmountB)
		}
		if r.Delta != nil {
			stats.Delta = stats.Delta.Add(*r.Delta)
		}
		s.setStats(r.Category, stats)
	}

	s.LedgerDelta = s.TotalA.Sub(s.TotalB)
	s.Explained = s.MissingInB.AmountA.
		Sub(s.MissingInA.AmountB).
		Add(s.ValueDivergent.Delta)
	s.Residual = s.LedgerDelta.Sub(s.Explained)

	return s
}

func (s *Summary) setStats(c Category, stats CategoryStats) {
	switch c {
	case Equal:
		s.Equal = stats
	case ValueDivergent:
		s.ValueDivergent = stats
	case MissingInA:
		s.MissingInA = stats
	case MissingInB:
		s.MissingInB = stats
	}
}
