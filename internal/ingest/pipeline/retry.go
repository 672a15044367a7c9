package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
)

const (
	retryBase     = time.Second
	retryFactor   = 2
	retryAttempts = 3
	retryJitter   = 0.25
)

// withRetry runs fn up to retryAttempts times with exponential backoff and
// ±25% jitter. Non-retryable error kinds surface immediately.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apierr.Timeout("retry_cancelled", ctx.Err())
			case <-time.After(jittered(delay)):
			}
			delay *= retryFactor
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apierr.Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func jittered(d time.Duration) time.Duration {
	spread := float64(d) * retryJitter
	offset := (rand.Float64()*2 - 1) * spread
	return time.Duration(float64(d) + offset)
}
