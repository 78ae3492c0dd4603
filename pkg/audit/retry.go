package audit

import (
	"context"
	"time"

	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/logging"
)

// RetryPolicy bounds how a failing audit call is retried. Only transport
// failures are retried; schema violations and context cancellation stop the
// attempt loop immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, exponential
// backoff from 2s capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.MaxRetryAttempts,
		BaseDelay:   constants.RetryBaseDelay,
		MaxDelay:    constants.RetryMaxDelay,
	}
}

// backoff returns the delay before the given attempt (1-based): base doubled
// per retry, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn under the policy. The last error is returned after the final
// attempt; non-retryable errors return without further attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	log := logging.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff(attempt - 1)
			log.Debug().Int("attempt", attempt).Dur("backoff", delay).
				Msg("Retrying audit call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
