// Package ledger defines the input side of a reconciliation run: the rows
// handed over by the document-parsing collaborator and the immutable entries
// the engine works on.
package ledger

import "github.com/shopspring/decimal"

// Source identifies which of the two ledgers an entry was read from.
type Source string

// The two ledgers being reconciled.
const (
	SourceA Source = "A"
	SourceB Source = "B"
)

// String returns the string representation of a source.
func (s Source) String() string {
	return string(s)
}

// Other returns the opposite ledger.
func (s Source) Other() Source {
	if s == SourceA {
		return SourceB
	}
	return SourceA
}

// Row is the wire shape produced by the external parsing collaborator.
// Amounts arrive as decimal strings; conversion happens in ParseRows.
type Row struct {
	Patient  string `json:"patient" yaml:"patient"`
	ExamName string `json:"exam_name" yaml:"exam_name"`
	ExamCode string `json:"exam_code,omitempty" yaml:"exam_code,omitempty"`
	Amount   string `json:"amount" yaml:"amount"`
}

// Entry is a single billing record. Immutable once read; CanonicalName is
// the only field written after construction, by the canonicalizer before
// matching starts.
type Entry struct {
	PatientID     string
	RawExamName   string
	CanonicalName string
	ExamCode      string
	Amount        decimal.Decimal
	Source        Source
}

// Identity returns the key the matcher pairs entries on: the exam code when
// present, otherwise the canonical name.
func (e *Entry) Identity() string {
	if e.ExamCode != "" {
		return e.ExamCode
	}
	return e.CanonicalName
}
