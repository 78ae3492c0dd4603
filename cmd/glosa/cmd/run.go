package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/labops/glosa"
	"github.com/labops/glosa/internal/synstore"
	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/pipeline"
	"github.com/labops/glosa/pkg/report"
)

var runFlags struct {
	ledgerA    string
	ledgerB    string
	synonyms   string
	outputPath string
}

// runSettings are the tunables of one run, resolved from flags, config file
// and environment through viper.
type runSettings struct {
	tolerance       string
	reportThreshold string
	fuzzy           bool
	fuzzyThreshold  float64
	audit           bool
	model           string
	batchItems      int
	batchBytes      int
	workers         int
	format          string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile two ledger files and write the report",
	Long: `Run loads ledger A and B from JSON files, reconciles them, and writes
the report as YAML or JSON. With --audit the divergences are sent to the
narrative service in batches; a failed batch degrades the report to partial
completeness instead of failing the run.

Every tunable flag can also come from the config file or a GLOSA_* environment
variable; an explicit flag wins.`,
	RunE: runReconciliation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.ledgerA, "ledger-a", "", "path to ledger A (JSON array of rows)")
	runCmd.Flags().StringVar(&runFlags.ledgerB, "ledger-b", "", "path to ledger B (JSON array of rows)")
	runCmd.Flags().StringVar(&runFlags.synonyms, "synonyms", "", "path to the synonym YAML file")
	runCmd.Flags().StringVarP(&runFlags.outputPath, "output", "o", "", "write the report to a file instead of stdout")

	runCmd.Flags().String("tolerance", constants.DefaultTolerance,
		"amount difference treated as equal")
	runCmd.Flags().String("report-threshold", constants.DefaultReportThreshold,
		"value divergences below this delta skip the narrative audit (0 disables)")
	runCmd.Flags().Bool("fuzzy", false, "enable fuzzy synonym resolution")
	runCmd.Flags().Float64("fuzzy-threshold", constants.DefaultFuzzyThreshold,
		"minimum similarity for a fuzzy synonym hit")
	runCmd.Flags().Bool("audit", false, "send divergences through the narrative audit")
	runCmd.Flags().String("model", constants.DefaultModel, "narrative model")
	runCmd.Flags().Int("batch-items", constants.DefaultBatchMaxItems,
		"maximum records per audit batch")
	runCmd.Flags().Int("batch-bytes", constants.DefaultBatchMaxBytes,
		"estimated payload budget per audit batch")
	runCmd.Flags().Int("audit-workers", constants.DefaultAuditWorkers,
		"audit batches in flight (1 is sequential)")
	runCmd.Flags().String("format", "yaml", "report format (yaml or json)")

	for _, name := range []string{
		"tolerance", "report-threshold", "fuzzy", "fuzzy-threshold",
		"audit", "model", "batch-items", "batch-bytes", "audit-workers", "format",
	} {
		if err := viper.BindPFlag(name, runCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", name, err))
		}
	}

	_ = runCmd.MarkFlagRequired("ledger-a")
	_ = runCmd.MarkFlagRequired("ledger-b")
}

// resolveSettings reads the bound tunables back out of viper, so config file
// and environment overrides take effect with flag values as defaults.
func resolveSettings() runSettings {
	return runSettings{
		tolerance:       viper.GetString("tolerance"),
		reportThreshold: viper.GetString("report-threshold"),
		fuzzy:           viper.GetBool("fuzzy"),
		fuzzyThreshold:  viper.GetFloat64("fuzzy-threshold"),
		audit:           viper.GetBool("audit"),
		model:           viper.GetString("model"),
		batchItems:      viper.GetInt("batch-items"),
		batchBytes:      viper.GetInt("batch-bytes"),
		workers:         viper.GetInt("audit-workers"),
		format:          viper.GetString("format"),
	}
}

func runReconciliation(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), constants.RunTimeout)
	defer cancel()

	settings := resolveSettings()
	opts, err := buildOptions(ctx, settings)
	if err != nil {
		return err
	}

	rep, err := glosa.ReconcileFiles(ctx, runFlags.ledgerA, runFlags.ledgerB, opts...)
	if err != nil {
		return err
	}
	return writeReport(rep, settings.format, runFlags.outputPath)
}

func buildOptions(ctx context.Context, settings runSettings) ([]glosa.Option, error) {
	tolerance, err := decimal.NewFromString(settings.tolerance)
	if err != nil {
		return nil, fmt.Errorf("parse tolerance: %w", err)
	}
	threshold, err := decimal.NewFromString(settings.reportThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse report-threshold: %w", err)
	}

	opts := []glosa.Option{
		glosa.WithTolerance(tolerance),
		glosa.WithReportThreshold(threshold),
		glosa.WithBatchLimits(settings.batchItems, settings.batchBytes),
		glosa.WithAuditWorkers(settings.workers),
	}
	if runFlags.synonyms != "" {
		opts = append(opts, glosa.WithSynonymStore(synstore.NewFileStore(runFlags.synonyms)))
	}
	if settings.fuzzy {
		opts = append(opts, glosa.WithFuzzyMatching(settings.fuzzyThreshold))
	}
	if settings.audit {
		apiKey := viper.GetString("gemini_api_key")
		if apiKey == "" {
			return nil, &errors.ConfigError{
				Component: "audit",
				Message:   "GEMINI_API_KEY is required for --audit",
			}
		}
		client, err := glosa.NewGeminiClient(ctx, apiKey, settings.model)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			glosa.WithAuditClient(client),
			glosa.WithProgress(func(p pipeline.Progress) {
				fmt.Fprintf(os.Stderr, "audit %3.0f%%  %s\n", p.Fraction*100, p.Message)
			}),
		)
	}
	return opts, nil
}

func writeReport(rep *report.Report, format, outputPath string) error {
	var data []byte
	var err error
	switch format {
	case "yaml", "":
		data, err = yaml.Marshal(rep)
	case "json":
		data, err = json.MarshalIndent(rep, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	return os.WriteFile(outputPath, data, constants.FilePermissions)
}
