package etl

import (
	"context"
	"time"
)

// Connection retry schedule: 3 attempts with 1s/2s/4s backoff.
const (
	RetryAttempts     = 3
	RetryInitialDelay = time.Second
)

// sleep is swapped out by tests to observe the backoff schedule.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn up to attempts times, doubling the delay after each
// failure starting from initial. It returns the last error, or the
// context error if cancelled mid-backoff.
func Retry(ctx context.Context, attempts int, initial time.Duration, fn func() error) error {
	var err error
	delay := initial
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= 2
	}
	return err
}
