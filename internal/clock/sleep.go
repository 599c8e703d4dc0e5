// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepOrSignal waits like SleepWithContext but also returns early when signal
// fires. A nil signal never fires.
func SleepOrSignal(ctx context.Context, d time.Duration, signal <-chan struct{}) error {
	if signal == nil {
		return SleepWithContext(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-signal:
		return nil
	case <-timer.C:
		return nil
	}
}
