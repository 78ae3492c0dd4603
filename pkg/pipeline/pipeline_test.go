package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/classify"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/pipeline"
)

// fakeClient records every batch and answers from a script. failOrdinals
// marks batches that fail terminally.
type fakeClient struct {
	mu           sync.Mutex
	batches      map[int][]audit.RecordView
	failOrdinals map[int]bool
	onExplain    func(batch int)
}

func newFakeClient(failOrdinals ...int) *fakeClient {
	fail := make(map[int]bool, len(failOrdinals))
	for _, o := range failOrdinals {
		fail[o] = true
	}
	return &fakeClient{batches: make(map[int][]audit.RecordView), failOrdinals: fail}
}

func (f *fakeClient) Explain(_ context.Context, batch int, views []audit.RecordView, _ string) ([]audit.Enrichment, error) {
	f.mu.Lock()
	f.batches[batch] = views
	f.mu.Unlock()
	if f.onExplain != nil {
		f.onExplain(batch)
	}

	if f.failOrdinals[batch] {
		return nil, &errors.SchemaError{Batch: batch, Message: "unparseable response"}
	}

	enrichments := make([]audit.Enrichment, len(views))
	for i, v := range views {
		enrichments[i] = audit.Enrichment{
			PatientID:    v.PatientID,
			ExamIdentity: v.ExamIdentity,
			Explanation:  "amount mismatch",
			RiskTag:      audit.RiskReview,
		}
	}
	return enrichments, nil
}

func records(n int) []classify.Record {
	out := make([]classify.Record, n)
	for i := range out {
		d := decimal.RequireFromString("1.50")
		out[i] = classify.Record{
			PatientID:    fmt.Sprintf("PATIENT %02d", i),
			ExamIdentity: "GLICOSE",
			Category:     classify.ValueDivergent,
			Delta:        &d,
		}
	}
	return out
}

func TestRunBatching(t *testing.T) {
	t.Run("item bound splits evenly", func(t *testing.T) {
		client := newFakeClient()
		o := pipeline.New(client, pipeline.Options{MaxItems: 4, MaxBytes: 1 << 20})

		outcome := o.Run(context.Background(), records(10))
		assert.Zero(t, outcome.FailedBatches)
		assert.False(t, outcome.Canceled)
		require.Len(t, client.batches, 3)
		assert.Len(t, client.batches[1], 4)
		assert.Len(t, client.batches[2], 4)
		assert.Len(t, client.batches[3], 2)
	})

	t.Run("byte bound splits early", func(t *testing.T) {
		client := newFakeClient()
		// Each view is well over 60 bytes, so at most one fits per batch.
		o := pipeline.New(client, pipeline.Options{MaxItems: 100, MaxBytes: 60})

		o.Run(context.Background(), records(3))
		require.Len(t, client.batches, 3)
		for ordinal := 1; ordinal <= 3; ordinal++ {
			assert.Len(t, client.batches[ordinal], 1)
		}
	})

	t.Run("batches cover every record in order", func(t *testing.T) {
		client := newFakeClient()
		o := pipeline.New(client, pipeline.Options{MaxItems: 3, MaxBytes: 1 << 20})

		in := records(8)
		outcome := o.Run(context.Background(), in)

		require.Len(t, outcome.Enrichments, len(in))
		for i, e := range outcome.Enrichments {
			assert.Equal(t, in[i].PatientID, e.PatientID)
		}
	})

	t.Run("no records", func(t *testing.T) {
		client := newFakeClient()
		o := pipeline.New(client, pipeline.Options{})

		outcome := o.Run(context.Background(), nil)
		assert.Empty(t, outcome.Enrichments)
		assert.Zero(t, outcome.FailedBatches)
		assert.Empty(t, client.batches)
	})
}

func TestRunPartialFailure(t *testing.T) {
	client := newFakeClient(2)
	o := pipeline.New(client, pipeline.Options{MaxItems: 2, MaxBytes: 1 << 20})

	in := records(6)
	outcome := o.Run(context.Background(), in)

	assert.Equal(t, 1, outcome.FailedBatches)
	assert.False(t, outcome.Canceled)
	// Batches 1 and 3 succeeded; their enrichments merge in batch order.
	require.Len(t, outcome.Enrichments, 4)
	assert.Equal(t, "PATIENT 00", outcome.Enrichments[0].PatientID)
	assert.Equal(t, "PATIENT 01", outcome.Enrichments[1].PatientID)
	assert.Equal(t, "PATIENT 04", outcome.Enrichments[2].PatientID)
	assert.Equal(t, "PATIENT 05", outcome.Enrichments[3].PatientID)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := newFakeClient()
	client.onExplain = func(batch int) {
		if batch == 2 {
			cancel()
		}
	}
	o := pipeline.New(client, pipeline.Options{MaxItems: 1, MaxBytes: 1 << 20})

	outcome := o.Run(ctx, records(5))

	assert.True(t, outcome.Canceled)
	// Batches 1 and 2 completed before the boundary check saw the
	// cancellation; nothing after was dispatched.
	assert.Len(t, outcome.Enrichments, 2)
	assert.Len(t, client.batches, 2)
	assert.Zero(t, outcome.FailedBatches)
}

func TestRunConcurrent(t *testing.T) {
	t.Run("results merge in batch order", func(t *testing.T) {
		client := newFakeClient()
		o := pipeline.New(client, pipeline.Options{MaxItems: 2, MaxBytes: 1 << 20, Workers: 4})

		in := records(8)
		outcome := o.Run(context.Background(), in)

		require.Len(t, outcome.Enrichments, len(in))
		for i, e := range outcome.Enrichments {
			assert.Equal(t, in[i].PatientID, e.PatientID)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		client := newFakeClient(1, 3)
		o := pipeline.New(client, pipeline.Options{MaxItems: 2, MaxBytes: 1 << 20, Workers: 2})

		outcome := o.Run(context.Background(), records(8))
		assert.Equal(t, 2, outcome.FailedBatches)
		assert.Len(t, outcome.Enrichments, 4)
	})
}

func TestRunProgress(t *testing.T) {
	var progress []pipeline.Progress
	client := newFakeClient()
	o := pipeline.New(client, pipeline.Options{
		MaxItems: 2,
		MaxBytes: 1 << 20,
		OnProgress: func(p pipeline.Progress) {
			progress = append(progress, p)
		},
	})

	o.Run(context.Background(), records(4))

	require.NotEmpty(t, progress)
	assert.Zero(t, progress[0].Fraction)
	assert.Equal(t, 1.0, progress[len(progress)-1].Fraction)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Fraction, progress[i-1].Fraction,
			"progress must be monotonic")
	}
}
