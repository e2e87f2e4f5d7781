package tasks

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/utkarsh5026/batchrun/pool"
)

// Retrying wraps fn so that one task invocation makes up to maxTries
// attempts, waiting with exponential backoff from initial between them.
//
// The dispatcher itself never retries; this is opt-in per kind. Errors
// wrapped with backoff.Permanent, and ctx cancellation, stop retrying early.
func Retrying(fn pool.TaskFunc, maxTries uint, initial time.Duration) pool.TaskFunc {
	return func(ctx context.Context, args pool.Args) (any, error) {
		b := backoff.NewExponentialBackOff()
		if initial > 0 {
			b.InitialInterval = initial
		}

		return backoff.Retry(ctx, func() (any, error) {
			return fn(ctx, args)
		}, backoff.WithBackOff(b), backoff.WithMaxTries(max(maxTries, 1)))
	}
}
