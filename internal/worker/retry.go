package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
)

// retryConfig parameterizes the §4.7 retriable-error backoff:
// base*2^(n-1) + U(0, 0.5*base), base=1s, max 3 attempts.
type retryConfig struct {
	base     time.Duration
	attempts uint
}

// DefaultRetryConfig matches §4.7's exact parameters.
func DefaultRetryConfig() retryConfig {
	return retryConfig{base: time.Second, attempts: 3}
}

// jitterDelay is the retry.DelayTypeFunc implementing the backoff
// formula above. Grounded on pkg/llm/google/google.go's
// executeWithRetry, which computes its own exponential delay and adds
// a random jitter term before sleeping.
func jitterDelay(base time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		exp := base << n // base * 2^n; n is 0-indexed on the first retry
		jitter := time.Duration(rand.Float64() * 0.5 * float64(base))
		return exp + jitter
	}
}

// isRetriable excludes cancellation from the retry set: a cancelled or
// deadline-exceeded context should unwind immediately, not burn the
// attempt budget.
func isRetriable(err error) bool {
	return err != context.Canceled && err != context.DeadlineExceeded
}

// runWithRetry runs fn under cfg's backoff/attempts policy, tied to
// ctx so retries stop the moment the task is shut down.
func runWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(cfg.attempts),
		retry.DelayType(jitterDelay(cfg.base)),
		retry.RetryIf(isRetriable),
		retry.LastErrorOnly(true),
	)
}
