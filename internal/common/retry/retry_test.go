// internal/common/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Do
// ==========================

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, Options{MaxAttempts: 3, Delay: time.Millisecond})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary outage")
		}
		return nil
	}, Options{MaxAttempts: 3, Delay: time.Millisecond})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudgetReturnsLastError(t *testing.T) {
	lastErr := errors.New("still down")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return lastErr
	}, Options{MaxAttempts: 3, Delay: time.Millisecond})

	assert.Equal(t, lastErr, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RetryIfStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	}, Options{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		RetryIf:     func(err error) bool { return false },
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("down")
		}, Options{MaxAttempts: 10, Delay: time.Hour})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDo_BackoffCappedByMaxDelay(t *testing.T) {
	start := time.Now()
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("down")
	}, Options{
		MaxAttempts: 4,
		Delay:       time.Millisecond,
		Backoff:     10,
		MaxDelay:    5 * time.Millisecond,
	})

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
	// 1ms + 5ms + 5ms of delays, far below the uncapped 1+10+100ms
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
