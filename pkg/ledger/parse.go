package ledger

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/logging"
)

// ParseRows converts collaborator rows into ledger entries. Rows whose amount
// does not parse as a decimal are skipped with a warning; a malformed row is
// never fatal. The returned count is the number of rows skipped.
func ParseRows(ctx context.Context, source Source, rows []Row) ([]Entry, int) {
	log := logging.Ctx(ctx)

	entries := make([]Entry, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		patient := strings.TrimSpace(row.Patient)
		name := strings.TrimSpace(row.ExamName)

		if patient == "" || name == "" {
			skipped++
			rowErr := &errors.MalformedRowError{
				Source: source.String(), Index: i,
				Field: "patient/exam_name", Value: "",
				Message: "empty required field",
			}
			log.Warn().Err(rowErr).Str("ledger", source.String()).Int("row", i).
				Msg("Skipping malformed row")
			continue
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
		if err != nil {
			skipped++
			rowErr := &errors.MalformedRowError{
				Source: source.String(), Index: i,
				Field: "amount", Value: row.Amount,
				Message: err.Error(),
			}
			log.Warn().Err(rowErr).Str("ledger", source.String()).Int("row", i).
				Str("patient", patient).Msg("Skipping malformed row")
			continue
		}

		entries = append(entries, Entry{
			PatientID:   patient,
			RawExamName: name,
			ExamCode:    strings.TrimSpace(row.ExamCode),
			Amount:      amount,
			Source:      source,
		})
	}

	return entries, skipped
}

// LoadRows reads a JSON array of rows from a file. This is the concrete edge
// for the CLI; programmatic callers hand rows to ParseRows directly.
func LoadRows(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{
			Component: "ledger",
			Message:   "reading rows file " + path,
			Err:       err,
		}
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &errors.ConfigError{
			Component: "ledger",
			Message:   "decoding rows file " + path,
			Err:       err,
		}
	}
	return rows, nil
}
