package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/labops/glosa/pkg/errors"
)

// Caller issues one raw request to the narrative service and returns the
// model's text output. Implementations own transport-level error
// classification; they return *errors.TransportError for failures worth
// retrying.
type Caller interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Adapter applies the retry policy and response contract around a Caller.
// It is stateless per invocation and safe for concurrent use.
type Adapter struct {
	caller Caller
	policy RetryPolicy
}

// NewAdapter wraps a caller with a retry policy.
func NewAdapter(caller Caller, policy RetryPolicy) *Adapter {
	return &Adapter{caller: caller, policy: policy}
}

// Explain implements Client. Transport failures retry under the policy; a
// response that does not satisfy the contract is a SchemaError and fails
// the batch without retry.
func (a *Adapter) Explain(ctx context.Context, batch int, views []RecordView, instructions string) ([]Enrichment, error) {
	prompt, err := buildPrompt(views, instructions)
	if err != nil {
		return nil, err
	}

	var raw string
	err = a.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = a.caller.Generate(ctx, prompt)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	return parseEnrichments(batch, raw, views)
}

// request is the wire shape of one audit call.
type request struct {
	Batch        []RecordView `json:"batch"`
	Instructions string       `json:"instructions"`
}

// buildPrompt serializes the batch request for the narrative model.
func buildPrompt(views []RecordView, instructions string) (string, error) {
	payload, err := json.Marshal(request{Batch: views, Instructions: instructions})
	if err != nil {
		return "", &errors.ValidationError{
			Field:   "batch",
			Message: fmt.Sprintf("encoding audit request: %v", err),
		}
	}
	return string(payload), nil
}

// responseItem is one element of the expected JSON array.
type responseItem struct {
	PatientID    string `json:"patient_id"`
	ExamIdentity string `json:"exam_identity"`
	Explanation  string `json:"explanation"`
	RiskTag      string `json:"risk_tag"`
}

// parseEnrichments validates the strict contract: a JSON array whose
// elements map 1:1 onto the input views by (patient_id, exam_identity),
// with same-key elements assigned positionally. Output is reordered to
// input order.
func parseEnrichments(batch int, raw string, views []RecordView) ([]Enrichment, error) {
	var items []responseItem
	if err := json.Unmarshal([]byte(stripFences(raw)), &items); err != nil {
		return nil, errors.WrapSchema(batch, fmt.Errorf("response is not a JSON array: %w", err))
	}

	if len(items) != len(views) {
		return nil, &errors.SchemaError{
			Batch: batch,
			Message: fmt.Sprintf("expected %d elements, got %d", len(views), len(items)),
		}
	}

	// A batch may legitimately carry several records with the same key when
	// a patient has positionally-paired duplicate exams, so elements queue
	// per key and are consumed in response order.
	type key struct{ patient, identity string }
	byKey := make(map[key][]responseItem, len(items))
	for _, item := range items {
		k := key{item.PatientID, item.ExamIdentity}
		byKey[k] = append(byKey[k], item)
	}

	enrichments := make([]Enrichment, len(views))
	for i, v := range views {
		k := key{v.PatientID, v.ExamIdentity}
		queue := byKey[k]
		if len(queue) == 0 {
			return nil, &errors.SchemaError{
				Batch: batch,
				Message: fmt.Sprintf("no element for patient %s identity %s",
					v.PatientID, v.ExamIdentity),
			}
		}
		item := queue[0]
		byKey[k] = queue[1:]

		tag := RiskTag(strings.ToLower(strings.TrimSpace(item.RiskTag)))
		if !tag.Valid() {
			return nil, &errors.SchemaError{
				Batch:   batch,
				Message: fmt.Sprintf("invalid risk_tag %q", item.RiskTag),
			}
		}

		enrichments[i] = Enrichment{
			PatientID:    v.PatientID,
			ExamIdentity: v.ExamIdentity,
			Explanation:  item.Explanation,
			RiskTag:      tag,
		}
	}

	return enrichments, nil
}

// stripFences removes a surrounding markdown code fence, which models emit
// even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
