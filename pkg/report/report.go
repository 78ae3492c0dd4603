// Package report assembles the final artifact of a reconciliation run. The
// aggregator is the single writer: it joins optional narrative enrichment
// into the classified records after all upstream work has completed or
// failed, so the report never observes a partially-audited state.
package report

import (
	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/classify"
)

// State describes how much of the requested enrichment succeeded.
type State string

// Completeness states.
const (
	// Full means every dispatched batch succeeded (or no audit was requested).
	Full State = "full"
	// Partial means at least one batch failed or the run was canceled before
	// every batch dispatched; the deterministic summary is still complete.
	Partial State = "partial"
)

// Completeness qualifies the report's enrichment coverage.
type Completeness struct {
	State         State    `json:"state" yaml:"state"`
	FailedBatches int      `json:"failed_batches,omitempty" yaml:"failed_batches,omitempty"`
	Warnings      []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Divergence is a classified record plus its optional narrative enrichment.
// A nil Enrichment is a valid final state: the record was sieved out, its
// batch failed, or auditing was disabled.
type Divergence struct {
	classify.Record `yaml:",inline"`
	Enrichment      *audit.Enrichment `json:"enrichment,omitempty" yaml:"enrichment,omitempty"`
}

// Report is the only externally visible artifact of the core. The summary
// and records are always complete regardless of audit-side failures; only
// the narrative fields may be absent.
type Report struct {
	Summary      classify.Summary `json:"summary" yaml:"summary"`
	Divergences  []Divergence     `json:"divergences" yaml:"divergences"`
	Completeness Completeness     `json:"completeness" yaml:"completeness"`
}

// Build joins enrichments into the classified records by
// (patient_id, exam_identity) and stamps the completeness state.
func Build(summary classify.Summary, records []classify.Record, enrichments []audit.Enrichment, failedBatches int, canceled bool, warnings []string) *Report {
	type key struct{ patient, identity string }

	byKey := make(map[key]*audit.Enrichment, len(enrichments))
	for i := range enrichments {
		e := enrichments[i]
		byKey[key{e.PatientID, e.ExamIdentity}] = &e
	}

	divergences := make([]Divergence, 0, len(records))
	for _, r := range records {
		if !r.Category.IsDivergence() {
			continue
		}
		divergences = append(divergences, Divergence{
			Record:     r,
			Enrichment: byKey[key{r.PatientID, r.ExamIdentity}],
		})
	}

	completeness := Completeness{State: Full, Warnings: warnings}
	if failedBatches > 0 || canceled {
		completeness.State = Partial
		completeness.FailedBatches = failedBatches
	}

	return &Report{
		Summary:      summary,
		Divergences:  divergences,
		Completeness: completeness,
	}
}
