// Package classify turns matched and unmatched entries into divergence
// records and the deterministic financial summary. Everything here is pure
// decimal arithmetic over already-ordered inputs, so the summary reproduces
// byte-for-byte for the same ledgers.
package classify

import (
	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/ledger"
	"github.com/labops/glosa/pkg/match"
)

// Category is the closed set of reconciliation outcomes.
type Category string

// The four outcomes. Any record that is not Equal is a divergence.
const (
	Equal          Category = "equal"
	ValueDivergent Category = "value_divergent"
	MissingInA     Category = "missing_in_a"
	MissingInB     Category = "missing_in_b"
)

// Categories lists all valid categories in summary order.
func Categories() []Category {
	return []Category{Equal, ValueDivergent, MissingInA, MissingInB}
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	switch c {
	case Equal, ValueDivergent, MissingInA, MissingInB:
		return true
	}
	return false
}

// IsDivergence reports whether the category needs explanation.
func (c Category) IsDivergence() bool {
	return c.Valid() && c != Equal
}

// Record is one classified outcome. Immutable once created.
type Record struct {
	PatientID    string           `json:"patient_id" yaml:"patient_id"`
	ExamIdentity string           `json:"exam_identity" yaml:"exam_identity"`
	ExamName     string           `json:"exam_name,omitempty" yaml:"exam_name,omitempty"`
	Category     Category         `json:"category" yaml:"category"`
	AmountA      *decimal.Decimal `json:"amount_a,omitempty" yaml:"amount_a,omitempty"`
	AmountB      *decimal.Decimal `json:"amount_b,omitempty" yaml:"amount_b,omitempty"`
	Delta        *decimal.Decimal `json:"delta,omitempty" yaml:"delta,omitempty"`
}

// Classifier assigns categories under a fixed tolerance.
type Classifier struct {
	tolerance decimal.Decimal
}

// New creates a Classifier. Tolerance is the absolute amount difference
// inside which a matched pair still counts as equal.
func New(tolerance decimal.Decimal) *Classifier {
	return &Classifier{tolerance: tolerance}
}

// Records classifies the full match result. Matched pairs come first, then
// unmatched entries, both in the matcher's deterministic order.
func (c *Classifier) Records(result *match.Result) []Record {
	records := make([]Record, 0, len(result.Pairs)+len(result.Unmatched))

	for _, pair := range result.Pairs {
		records = append(records, c.classifyPair(pair))
	}
	for _, um := range result.Unmatched {
		records = append(records, classifyUnmatched(um))
	}

	return records
}

// classifyPair computes delta = amount_a - amount_b and applies the
// tolerance. A delta exactly at the tolerance is still equal.
func (c *Classifier) classifyPair(pair match.Pair) Record {
	amountA := pair.A.Amount
	amountB := pair.B.Amount
	delta := amountA.Sub(amountB)

	category := Equal
	if delta.Abs().GreaterThan(c.tolerance) {
		category = ValueDivergent
	}

	return Record{
		PatientID:    pair.Key.PatientID,
		ExamIdentity: pair.Key.Identity,
		ExamName:     pair.A.RawExamName,
		Category:     category,
		AmountA:      &amountA,
		AmountB:      &amountB,
		Delta:        &delta,
	}
}

// classifyUnmatched maps a one-sided entry to its missing category.
func classifyUnmatched(um match.Unmatched) Record {
	amount := um.Entry.Amount

	record := Record{
		PatientID:    um.Entry.PatientID,
		ExamIdentity: um.Entry.Identity(),
		ExamName:     um.Entry.RawExamName,
	}

	switch um.MissingFrom {
	case ledger.SourceB:
		record.Category = MissingInB
		record.AmountA = &amount
	default:
		record.Category = MissingInA
		record.AmountB = &amount
	}

	return record
}
