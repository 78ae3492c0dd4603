package glosa_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops/glosa"
	"github.com/labops/glosa/internal/synstore"
	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/ledger"
	"github.com/labops/glosa/pkg/report"
)

// echoClient answers every batch with a fixed narrative.
type echoClient struct {
	batches int
	fail    bool
}

func (c *echoClient) Explain(_ context.Context, _ int, views []audit.RecordView, _ string) ([]audit.Enrichment, error) {
	c.batches++
	if c.fail {
		return nil, errors.WrapTransport("narrative", 503, errors.New("upstream unavailable"))
	}
	enrichments := make([]audit.Enrichment, len(views))
	for i, v := range views {
		enrichments[i] = audit.Enrichment{
			PatientID:    v.PatientID,
			ExamIdentity: v.ExamIdentity,
			Explanation:  "amount mismatch between ledgers",
			RiskTag:      audit.RiskReview,
		}
	}
	return enrichments, nil
}

func rowsA() []ledger.Row {
	return []ledger.Row{
		{Patient: "ANA SILVA", ExamName: "Glicemia em Jejum", Amount: "12.50"},
		{Patient: "ANA SILVA", ExamName: "Hemograma Completo", Amount: "30.00"},
		{Patient: "JOAO PEREIRA", ExamName: "TSH", Amount: "25.00"},
	}
}

func rowsB() []ledger.Row {
	return []ledger.Row{
		{Patient: "ANA SILVA", ExamName: "Glicose", Amount: "11.00"},
		{Patient: "ANA SILVA", ExamName: "Hemograma Completo", Amount: "30.00"},
		{Patient: "JOAO PEREIRA", ExamName: "EAS", Amount: "9.00"},
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := synstore.NewStaticStore(map[string]string{
		"GLICEMIA EM JEJUM": "GLICOSE",
	})

	t.Run("without audit", func(t *testing.T) {
		rep, err := glosa.Reconcile(ctx, rowsA(), rowsB(), glosa.WithSynonymStore(store))
		require.NoError(t, err)

		// GLICOSE pairs through the synonym store and diverges by 1.50; TSH
		// and EAS are one-sided.
		assert.Equal(t, 1, rep.Summary.Equal.Count)
		assert.Equal(t, 1, rep.Summary.ValueDivergent.Count)
		assert.Equal(t, 1, rep.Summary.MissingInA.Count)
		assert.Equal(t, 1, rep.Summary.MissingInB.Count)
		assert.True(t, rep.Summary.LedgerDelta.Equal(decimal.RequireFromString("17.50")))

		require.Len(t, rep.Divergences, 3)
		for _, d := range rep.Divergences {
			assert.Nil(t, d.Enrichment)
		}
		assert.Equal(t, report.Full, rep.Completeness.State)
	})

	t.Run("with audit", func(t *testing.T) {
		client := &echoClient{}
		rep, err := glosa.Reconcile(ctx, rowsA(), rowsB(),
			glosa.WithSynonymStore(store),
			glosa.WithAuditClient(client),
		)
		require.NoError(t, err)

		assert.Equal(t, report.Full, rep.Completeness.State)
		for _, d := range rep.Divergences {
			require.NotNil(t, d.Enrichment, "divergence %s/%s missing enrichment", d.PatientID, d.ExamIdentity)
			assert.Equal(t, audit.RiskReview, d.Enrichment.RiskTag)
		}
	})

	t.Run("audit failure degrades to partial", func(t *testing.T) {
		client := &echoClient{fail: true}
		rep, err := glosa.Reconcile(ctx, rowsA(), rowsB(),
			glosa.WithSynonymStore(store),
			glosa.WithAuditClient(client),
		)
		require.NoError(t, err)

		assert.Equal(t, report.Partial, rep.Completeness.State)
		assert.Positive(t, rep.Completeness.FailedBatches)
		// The deterministic side is untouched by audit failures.
		assert.Equal(t, 3, rep.Summary.Divergences())
	})

	t.Run("summary identical with and without audit", func(t *testing.T) {
		plain, err := glosa.Reconcile(ctx, rowsA(), rowsB(), glosa.WithSynonymStore(store))
		require.NoError(t, err)

		audited, err := glosa.Reconcile(ctx, rowsA(), rowsB(),
			glosa.WithSynonymStore(store),
			glosa.WithAuditClient(&echoClient{}),
		)
		require.NoError(t, err)
		assert.Equal(t, plain.Summary, audited.Summary)
	})
}

func TestReconcileValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("both ledgers empty", func(t *testing.T) {
		_, err := glosa.Reconcile(ctx, nil, nil)
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("one empty ledger is valid", func(t *testing.T) {
		rep, err := glosa.Reconcile(ctx, rowsA(), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, rep.Summary.MissingInB.Count)
		assert.True(t, rep.Summary.TotalB.IsZero())
	})

	t.Run("negative tolerance", func(t *testing.T) {
		_, err := glosa.Reconcile(ctx, rowsA(), rowsB(),
			glosa.WithTolerance(decimal.RequireFromString("-0.01")))
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("fuzzy threshold out of range", func(t *testing.T) {
		_, err := glosa.Reconcile(ctx, rowsA(), rowsB(), glosa.WithFuzzyMatching(1.5))
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestReconcileMalformedRows(t *testing.T) {
	a := append(rowsA(), ledger.Row{Patient: "ANA SILVA", ExamName: "Ureia", Amount: "abc"})

	rep, err := glosa.Reconcile(context.Background(), a, rowsB())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Completeness.Warnings)
	assert.Contains(t, rep.Completeness.Warnings[0], "skipped 1 malformed rows")
}

func TestReconcileStoreFailure(t *testing.T) {
	store := &failingStore{}
	rep, err := glosa.Reconcile(context.Background(), rowsA(), rowsB(), glosa.WithSynonymStore(store))
	require.NoError(t, err)

	// Identity mode: GLICEMIA EM JEJUM and GLICOSE no longer unify, and the
	// degradation surfaces as a warning.
	assert.Equal(t, 2, rep.Summary.MissingInA.Count)
	assert.Equal(t, 2, rep.Summary.MissingInB.Count)
	require.NotEmpty(t, rep.Completeness.Warnings)
	assert.Contains(t, rep.Completeness.Warnings[0], "synonym store unavailable")
}

type failingStore struct{}

func (s *failingStore) GetAll(context.Context) (map[string]string, error) {
	return nil, errors.New("connection refused")
}

func TestReconcileTolerance(t *testing.T) {
	a := []ledger.Row{{Patient: "ANA SILVA", ExamName: "Glicose", Amount: "12.50"}}
	b := []ledger.Row{{Patient: "ANA SILVA", ExamName: "Glicose", Amount: "11.00"}}

	rep, err := glosa.Reconcile(context.Background(), a, b,
		glosa.WithTolerance(decimal.RequireFromString("2.00")))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Equal.Count)
	assert.Empty(t, rep.Divergences)
}
