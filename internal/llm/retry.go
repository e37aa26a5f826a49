package llm

import (
	"context"
	"time"

	"github.com/cordialrun/agentrt/internal/retry"
)

// OnRetry is invoked before each retry attempt after the first, so the
// Agent can publish a retriable error event.
type OnRetry func(attempt int, err error)

// WithRetry runs op, retrying on errors whose classified Kind is
// retryable, using internal/retry's exponential-backoff-with-jitter delay
// schedule. onRetry may be nil.
func WithRetry(ctx context.Context, maxRetries int, initialDelay time.Duration, onRetry OnRetry, op func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	cfg := retry.Config{
		MaxAttempts:  maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     30 * time.Second,
		Factor:       2.0,
		Jitter:       true,
		Retryable: func(err error) bool {
			perr, ok := err.(*ProviderError)
			return ok && perr.Kind.Retryable()
		},
	}
	if onRetry != nil {
		cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
			onRetry(attempt, err)
		}
	}

	res := retry.Do(ctx, cfg, op)
	return res.Err
}
