// Package audit wraps the external narrative service that explains
// divergence records. The adapter is stateless per call: it sends one
// request per batch, retries transport failures under an explicit policy,
// and enforces a strict response contract. A response that violates the
// contract fails the batch immediately; retrying an unparseable answer to
// the same input is assumed futile.
package audit

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/classify"
)

// RiskTag is the closed set of risk levels a narrative may assign.
type RiskTag string

// Risk levels, lowest to highest.
const (
	RiskInfo     RiskTag = "info"
	RiskReview   RiskTag = "review"
	RiskCritical RiskTag = "critical"
)

// Valid reports whether t is one of the defined risk tags.
func (t RiskTag) Valid() bool {
	switch t {
	case RiskInfo, RiskReview, RiskCritical:
		return true
	}
	return false
}

// RecordView is the divergence projection sent to the narrative service.
type RecordView struct {
	PatientID    string           `json:"patient_id"`
	ExamIdentity string           `json:"exam_identity"`
	ExamName     string           `json:"exam_name,omitempty"`
	Category     string           `json:"category"`
	AmountA      *decimal.Decimal `json:"amount_a,omitempty"`
	AmountB      *decimal.Decimal `json:"amount_b,omitempty"`
	Delta        *decimal.Decimal `json:"delta,omitempty"`
}

// Enrichment is one narrative explanation, keyed back to its divergence
// record by (patient_id, exam_identity).
type Enrichment struct {
	PatientID    string  `json:"patient_id" yaml:"patient_id"`
	ExamIdentity string  `json:"exam_identity" yaml:"exam_identity"`
	Explanation  string  `json:"explanation" yaml:"explanation"`
	RiskTag      RiskTag `json:"risk_tag" yaml:"risk_tag"`
}

// Client is the adapter boundary the orchestrator talks to.
type Client interface {
	// Explain sends one batch and returns exactly one enrichment per input
	// view, in input order. batch is the batch's ordinal, used only for
	// error reporting.
	Explain(ctx context.Context, batch int, views []RecordView, instructions string) ([]Enrichment, error)
}

// View projects a classified record into its service representation.
func View(r classify.Record) RecordView {
	return RecordView{
		PatientID:    r.PatientID,
		ExamIdentity: r.ExamIdentity,
		ExamName:     r.ExamName,
		Category:     string(r.Category),
		AmountA:      r.AmountA,
		AmountB:      r.AmountB,
		Delta:        r.Delta,
	}
}

// Views projects a slice of records preserving order.
func Views(records []classify.Record) []RecordView {
	views := make([]RecordView, len(records))
	for i, r := range records {
		views[i] = View(r)
	}
	return views
}
