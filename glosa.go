// Package glosa reconciles two laboratory billing ledgers. It canonicalizes
// exam names, pairs entries per patient, classifies each pairing against an
// amount tolerance, and optionally sends the resulting divergences through a
// batched narrative audit that explains each one and assigns a risk tag.
//
// The entry point is Reconcile:
//
//	rep, err := glosa.Reconcile(ctx, rowsA, rowsB,
//		glosa.WithTolerance(decimal.RequireFromString("0.05")),
//		glosa.WithSynonymStore(store),
//		glosa.WithAuditClient(client),
//	)
//
// Without an audit client the run stops after classification and the report
// carries unexplained divergences with a full completeness state.
package glosa

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/canonical"
	"github.com/labops/glosa/pkg/classify"
	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/ledger"
	"github.com/labops/glosa/pkg/logging"
	"github.com/labops/glosa/pkg/match"
	"github.com/labops/glosa/pkg/pipeline"
	"github.com/labops/glosa/pkg/report"
	"github.com/labops/glosa/pkg/sieve"
)

// Reconcile runs the full reconciliation over the two ledgers and returns the
// assembled report. Malformed rows are skipped, not fatal; both ledgers being
// empty after parsing is a validation error. The context is honored at audit
// batch boundaries only, so a cancellation mid-run still yields a report with
// partial completeness rather than an error.
func Reconcile(ctx context.Context, rowsA, rowsB []ledger.Row, opts ...Option) (*report.Report, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	entriesA, skippedA := ledger.ParseRows(ctx, ledger.SourceA, rowsA)
	entriesB, skippedB := ledger.ParseRows(ctx, ledger.SourceB, rowsB)
	if len(entriesA) == 0 && len(entriesB) == 0 {
		return nil, &errors.ValidationError{
			Field:   "ledgers",
			Message: "both ledgers are empty after parsing",
		}
	}

	var warnings []string
	if skippedA > 0 {
		warnings = append(warnings, fmt.Sprintf("ledger A: skipped %d malformed rows", skippedA))
	}
	if skippedB > 0 {
		warnings = append(warnings, fmt.Sprintf("ledger B: skipped %d malformed rows", skippedB))
	}

	canonicalizer, warn := buildCanonicalizer(ctx, cfg)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	entriesA = canonicalizer.Apply(entriesA)
	entriesB = canonicalizer.Apply(entriesB)

	matched := match.Entries(ctx, entriesA, entriesB)
	records := classify.New(cfg.tolerance).Records(matched)
	summary := classify.Summarize(records)

	logger.Info().
		Int("entries_a", len(entriesA)).
		Int("entries_b", len(entriesB)).
		Int("records", len(records)).
		Int("divergences", summary.Divergences()).
		Msg("classification complete")

	if cfg.auditClient == nil {
		return report.Build(summary, records, nil, 0, false, warnings), nil
	}

	audited := sieve.New(cfg.reportThreshold).Filter(records)
	outcome := pipeline.New(cfg.auditClient, pipeline.Options{
		MaxItems:     cfg.batchMaxItems,
		MaxBytes:     cfg.batchMaxBytes,
		Workers:      cfg.auditWorkers,
		Instructions: cfg.instructions,
		OnProgress:   cfg.onProgress,
	}).Run(ctx, audited)

	return report.Build(summary, records, outcome.Enrichments, outcome.FailedBatches, outcome.Canceled, warnings), nil
}

// ReconcileFiles is a convenience wrapper that loads both ledgers from JSON
// files before reconciling.
func ReconcileFiles(ctx context.Context, pathA, pathB string, opts ...Option) (*report.Report, error) {
	rowsA, err := ledger.LoadRows(pathA)
	if err != nil {
		return nil, fmt.Errorf("ledger A: %w", err)
	}
	rowsB, err := ledger.LoadRows(pathB)
	if err != nil {
		return nil, fmt.Errorf("ledger B: %w", err)
	}
	return Reconcile(ctx, rowsA, rowsB, opts...)
}

// NewGeminiClient builds the default narrative audit client backed by the
// Gemini API, with the standard retry policy. Model falls back to
// constants.DefaultModel when empty.
func NewGeminiClient(ctx context.Context, apiKey, model string) (audit.Client, error) {
	caller, err := audit.NewGeminiCaller(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return audit.NewAdapter(caller, audit.DefaultRetryPolicy()), nil
}

// newConfig applies defaults, then the caller's options.
func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		tolerance:       decimal.RequireFromString(constants.DefaultTolerance),
		reportThreshold: decimal.RequireFromString(constants.DefaultReportThreshold),
		fuzzyThreshold:  constants.DefaultFuzzyThreshold,
		batchMaxItems:   constants.DefaultBatchMaxItems,
		batchMaxBytes:   constants.DefaultBatchMaxBytes,
		auditWorkers:    constants.DefaultAuditWorkers,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.tolerance.IsNegative() {
		return nil, &errors.ValidationError{Field: "tolerance", Message: "must not be negative"}
	}
	if cfg.reportThreshold.IsNegative() {
		return nil, &errors.ValidationError{Field: "report_threshold", Message: "must not be negative"}
	}
	if cfg.fuzzy && (cfg.fuzzyThreshold <= 0 || cfg.fuzzyThreshold > 1) {
		return nil, &errors.ValidationError{Field: "fuzzy_threshold", Message: "must be in (0, 1]"}
	}
	return cfg, nil
}

// buildCanonicalizer reads the synonym snapshot once per run. A store failure
// degrades to identity mode with a report warning instead of aborting.
func buildCanonicalizer(ctx context.Context, cfg *config) (*canonical.Canonicalizer, string) {
	var opts []canonical.Option
	if cfg.fuzzy {
		opts = append(opts, canonical.WithFuzzy(cfg.fuzzyThreshold))
	}
	if cfg.synonymStore == nil {
		return canonical.New(nil, opts...), ""
	}
	canonicalizer, err := canonical.NewFromStore(ctx, cfg.synonymStore, opts...)
	if err != nil {
		return canonicalizer, "synonym store unavailable, exam names taken as-is"
	}
	return canonicalizer, ""
}
