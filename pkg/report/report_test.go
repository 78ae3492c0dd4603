package report_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/classify"
	"github.com/labops/glosa/pkg/report"
)

func record(patient, identity string, category classify.Category) classify.Record {
	d := decimal.RequireFromString("1.50")
	r := classify.Record{PatientID: patient, ExamIdentity: identity, Category: category}
	if category == classify.ValueDivergent {
		r.Delta = &d
	}
	return r
}

func TestBuild(t *testing.T) {
	records := []classify.Record{
		record("ANA SILVA", "GLICOSE", classify.Equal),
		record("ANA SILVA", "TSH", classify.ValueDivergent),
		record("JOAO PEREIRA", "UREIA", classify.MissingInA),
	}
	summary := classify.Summarize(records)

	t.Run("joins enrichments by patient and identity", func(t *testing.T) {
		enrichments := []audit.Enrichment{
			{PatientID: "ANA SILVA", ExamIdentity: "TSH", Explanation: "amount mismatch", RiskTag: audit.RiskReview},
		}

		rep := report.Build(summary, records, enrichments, 0, false, nil)

		// Equal records never appear in the divergence list.
		require.Len(t, rep.Divergences, 2)
		require.NotNil(t, rep.Divergences[0].Enrichment)
		assert.Equal(t, audit.RiskReview, rep.Divergences[0].Enrichment.RiskTag)
		assert.Nil(t, rep.Divergences[1].Enrichment)
		assert.Equal(t, report.Full, rep.Completeness.State)
	})

	t.Run("failed batches degrade to partial", func(t *testing.T) {
		rep := report.Build(summary, records, nil, 2, false, nil)
		assert.Equal(t, report.Partial, rep.Completeness.State)
		assert.Equal(t, 2, rep.Completeness.FailedBatches)
		for _, d := range rep.Divergences {
			assert.Nil(t, d.Enrichment)
		}
	})

	t.Run("cancellation degrades to partial", func(t *testing.T) {
		rep := report.Build(summary, records, nil, 0, true, nil)
		assert.Equal(t, report.Partial, rep.Completeness.State)
		assert.Zero(t, rep.Completeness.FailedBatches)
	})

	t.Run("warnings are carried", func(t *testing.T) {
		rep := report.Build(summary, records, nil, 0, false, []string{"synonym store unavailable, exam names taken as-is"})
		assert.Equal(t, report.Full, rep.Completeness.State)
		require.Len(t, rep.Completeness.Warnings, 1)
	})

	t.Run("summary passes through untouched", func(t *testing.T) {
		rep := report.Build(summary, records, nil, 3, true, nil)
		assert.Equal(t, summary, rep.Summary)
	})
}

func TestBuildEmpty(t *testing.T) {
	rep := report.Build(classify.Summarize(nil), nil, nil, 0, false, nil)
	assert.Empty(t, rep.Divergences)
	assert.Equal(t, report.Full, rep.Completeness.State)
}
