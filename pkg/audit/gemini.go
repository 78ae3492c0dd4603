package audit

import (
	"context"
	goerrors "errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/errors"
)

// DefaultInstructions is the fixed template sent with every batch. The
// response contract it describes is enforced by the adapter regardless of
// what the model actually does.
const DefaultInstructions = `You are auditing discrepancies between two laboratory billing ledgers (A and B).
For every record in "batch", write a short explanation of the most likely cause
of the discrepancy and assign a risk tag.
Respond with a bare JSON array, one element per input record, each element:
{"patient_id": ..., "exam_identity": ..., "explanation": ..., "risk_tag": "info"|"review"|"critical"}.
Do not add records, omit records, or wrap the array in any other structure.`

// GeminiCaller issues narrative requests through the Google GenAI SDK.
type GeminiCaller struct {
	client *genai.Client
	model  string
}

// NewGeminiCaller creates a caller against the Gemini API backend.
func NewGeminiCaller(ctx context.Context, apiKey, model string) (*GeminiCaller, error) {
	if apiKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}
	if model == "" {
		model = constants.DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, &errors.ConfigError{
			Component: "audit",
			Message:   "creating genai client",
			Err:       err,
		}
	}

	return &GeminiCaller{client: client, model: model}, nil
}

// Generate implements Caller. Failures the service may recover from come
// back as *errors.TransportError so the retry policy picks them up.
func (c *GeminiCaller) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, constants.AuditCallTimeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(callCtx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", classifyCallError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", &errors.TransportError{
			Endpoint: c.model,
			Message:  "empty response from narrative service",
		}
	}
	return text, nil
}

// classifyCallError maps SDK failures onto the audit error taxonomy.
// Timeouts, rate limits and server-side failures are retryable transport
// errors; everything else is terminal.
func classifyCallError(err error) error {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return &errors.TransportError{
			Message: "narrative request timed out",
			Err:     errors.ErrTimeout,
		}
	}
	if goerrors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if goerrors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return &errors.TransportError{
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
		return fmt.Errorf("narrative service rejected request (status %d): %w", apiErr.Code, err)
	}

	// Network-level failures carry no status code but are worth retrying.
	return &errors.TransportError{Message: err.Error(), Err: err}
}
