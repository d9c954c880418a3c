// internal/common/retry/retry.go
package retry

import (
	"context"
	"time"
)

// Options controls the retry loop.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the sleep before the first retry.
	Delay time.Duration
	// Backoff multiplies the delay after every failed attempt. Values <= 1
	// give a fixed delay.
	Backoff float64
	// MaxDelay caps the backoff growth. Zero means no cap.
	MaxDelay time.Duration
	// RetryIf decides whether an error is worth another attempt.
	// Nil retries every error.
	RetryIf func(error) bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Delay <= 0 {
		o.Delay = 5 * time.Second
	}
	if o.Backoff < 1 {
		o.Backoff = 1
	}
	return o
}

// Do runs op until it succeeds, the attempt budget is spent, or ctx is done.
// It returns the last error when all attempts fail.
func Do(ctx context.Context, op func(context.Context) error, opts Options) error {
	opts = opts.withDefaults()

	var lastErr error
	delay := opts.Delay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if opts.RetryIf != nil && !opts.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == opts.MaxAttempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * opts.Backoff)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return lastErr
}
