// Package pipeline drives the narrative audit over sieved divergence
// records: it splits them into bounded batches, dispatches each through the
// audit client, reports progress at every batch boundary, and survives
// partial failure. Cancellation is cooperative — it is observed between
// batches only, and an in-flight request is left to finish or fail
// naturally rather than being aborted mid-call.
package pipeline

import (
	"context"
	"fmt"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/classify"
	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/logging"
)

// Progress is one step of the audit pipeline. Fraction grows monotonically
// from 0 to 1 across a run.
type Progress struct {
	Fraction float64
	Message  string
}

// ProgressFunc receives progress steps. Called synchronously at batch
// boundaries; a nil function disables reporting.
type ProgressFunc func(Progress)

// Outcome is what the audit stage produced for the aggregator.
type Outcome struct {
	// Enrichments from every batch that succeeded, merged in batch order.
	Enrichments []audit.Enrichment

	// FailedBatches counts batches whose audit call failed terminally; their
	// records stay unexplained.
	FailedBatches int

	// Canceled reports that the run stopped before dispatching every batch.
	Canceled bool
}

// Options configure an Orchestrator.
type Options struct {
	MaxItems     int
	MaxBytes     int
	Workers      int
	Instructions string
	OnProgress   ProgressFunc
}

// Orchestrator batches and dispatches divergence records.
type Orchestrator struct {
	client audit.Client
	opts   Options
}

// New creates an Orchestrator. Zero option fields fall back to defaults;
// Workers of 1 keeps dispatch strictly sequential.
func New(client audit.Client, opts Options) *Orchestrator {
	if opts.MaxItems <= 0 {
		opts.MaxItems = constants.DefaultBatchMaxItems
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = constants.DefaultBatchMaxBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultAuditWorkers
	}
	if opts.Instructions == "" {
		opts.Instructions = audit.DefaultInstructions
	}
	return &Orchestrator{client: client, opts: opts}
}

// Run dispatches every batch and merges the results in batch order. The
// returned Outcome is valid even when batches failed or the context was
// canceled; audit-side failures never surface as errors.
func (o *Orchestrator) Run(ctx context.Context, records []classify.Record) *Outcome {
	log := logging.Ctx(ctx)
	outcome := &Outcome{}

	batches := split(records, o.opts.MaxItems, o.opts.MaxBytes)
	if len(batches) == 0 {
		o.report(Progress{Fraction: 1, Message: "no divergences to audit"})
		return outcome
	}

	o.report(Progress{
		Fraction: 0,
		Message:  fmt.Sprintf("auditing %d records in %d batches", len(records), len(batches)),
	})

	if o.opts.Workers > 1 {
		o.runConcurrent(ctx, batches, outcome)
	} else {
		o.runSequential(ctx, batches, outcome)
	}

	log.Info().
		Int("batches", len(batches)).
		Int("failed", outcome.FailedBatches).
		Bool("canceled", outcome.Canceled).
		Msg("Audit pipeline finished")

	return outcome
}

// runSequential dispatches one batch at a time. Progress is strictly
// monotonic and deterministic.
func (o *Orchestrator) runSequential(ctx context.Context, batches []Batch, outcome *Outcome) {
	total := len(batches)

	for i, batch := range batches {
		// Cancellation is observed here, at the batch boundary, and nowhere
		// else.
		if ctx.Err() != nil {
			outcome.Canceled = true
			o.report(Progress{
				Fraction: float64(i) / float64(total),
				Message:  fmt.Sprintf("canceled after %d of %d batches", i, total),
			})
			return
		}

		o.report(Progress{
			Fraction: float64(i) / float64(total),
			Message:  fmt.Sprintf("dispatching batch %d/%d (%d records)", batch.Ordinal, total, len(batch.Records)),
		})

		enrichments, err := o.dispatch(ctx, batch)
		if err != nil {
			outcome.FailedBatches++
			o.report(Progress{
				Fraction: float64(i+1) / float64(total),
				Message:  fmt.Sprintf("batch %d/%d failed: enrichment unavailable", batch.Ordinal, total),
			})
			continue
		}

		outcome.Enrichments = append(outcome.Enrichments, enrichments...)
		o.report(Progress{
			Fraction: float64(i+1) / float64(total),
			Message:  fmt.Sprintf("batch %d/%d complete", batch.Ordinal, total),
		})
	}
}

// runConcurrent keeps up to Workers batches in flight. Each batch owns its
// own result slot; slots merge in batch order after all resolve, so the
// final ordering matches the sequential mode exactly.
func (o *Orchestrator) runConcurrent(ctx context.Context, batches []Batch, outcome *Outcome) {
	total := len(batches)

	type slot struct {
		enrichments []audit.Enrichment
		err         error
	}
	slots := make([]slot, total)

	sem := make(chan struct{}, o.opts.Workers)
	done := make(chan int, total)

	dispatched := 0
	for _, batch := range batches {
		if ctx.Err() != nil {
			outcome.Canceled = true
			break
		}
		sem <- struct{}{}

		dispatched++
		go func(b Batch) {
			defer func() { <-sem }()
			enrichments, err := o.dispatch(ctx, b)
			slots[b.Ordinal-1] = slot{enrichments: enrichments, err: err}
			done <- b.Ordinal
		}(batch)
	}

	completed := 0
	for completed < dispatched {
		ordinal := <-done
		completed++
		o.report(Progress{
			Fraction: float64(completed) / float64(total),
			Message:  fmt.Sprintf("batch %d/%d resolved", ordinal, total),
		})
	}

	for i := 0; i < dispatched; i++ {
		if slots[i].err != nil {
			outcome.FailedBatches++
			continue
		}
		outcome.Enrichments = append(outcome.Enrichments, slots[i].enrichments...)
	}
}

// dispatch sends one batch through the adapter. The call runs on a context
// detached from cancellation so an in-flight request is never aborted; the
// adapter's own per-call timeout still bounds it.
func (o *Orchestrator) dispatch(ctx context.Context, batch Batch) ([]audit.Enrichment, error) {
	log := logging.Ctx(ctx)

	callCtx := context.WithoutCancel(ctx)
	enrichments, err := o.client.Explain(callCtx, batch.Ordinal, audit.Views(batch.Records), o.opts.Instructions)
	if err != nil {
		log.Warn().Err(err).Int("batch", batch.Ordinal).Int("records", len(batch.Records)).
			Msg("Audit batch failed; records stay unexplained")
		return nil, err
	}
	return enrichments, nil
}

func (o *Orchestrator) report(p Progress) {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(p)
	}
}
