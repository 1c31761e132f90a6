package services

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy retries an operation a fixed number of times, doubling the
// wait between attempts.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetryPolicy makes three attempts starting one second apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Interval: time.Second}

// Do runs op until it succeeds, returns an error retryable rejects, or the
// attempts are used up. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, retryable func(error) bool) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.Interval

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil || !retryable(err) || attempt == attempts {
			return err
		}

		slog.WarnContext(ctx, "Operation failed, retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
