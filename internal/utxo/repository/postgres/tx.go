package postgres

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type retryPolicy struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		attempts:     10,
		initialDelay: 50 * time.Millisecond,
		maxDelay:     time.Second,
	}
}

// delay returns a random delay of 50%-150% of initialDelay, doubled per
// attempt and capped at maxDelay.
func (p retryPolicy) delay(attempt int) time.Duration {
	if p.initialDelay <= 0 {
		return 0
	}
	d := p.initialDelay/2 + time.Duration(rand.Int63n(int64(p.initialDelay))) //nolint:gosec
	if attempt == 0 {
		return d
	}
	d *= time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	if d > p.maxDelay || d <= 0 {
		return p.maxDelay
	}
	return d
}

type txHandle interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// executeWithRetry runs body inside a transaction obtained from begin and
// commits it. Serialization failures from begin, body or commit roll the
// transaction back and start over after a backoff.
func executeWithRetry[T txHandle](
	ctx context.Context,
	policy retryPolicy,
	begin func(context.Context) (T, error),
	body func(T) error,
	onBackoff func(attempt int, delay time.Duration),
) error {
	wait := func(attempt int) bool {
		d := policy.delay(attempt)
		onBackoff(attempt, d)

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for attempt := 0; attempt < policy.attempts; attempt++ {
		tx, err := begin(ctx)
		if err != nil {
			mapped := mapError(err)
			if IsSerializationError(mapped) && wait(attempt) {
				continue
			}
			return mapped
		}

		if err := body(tx); err != nil {
			_ = tx.Rollback(ctx)
			mapped := mapError(err)
			if IsSerializationError(mapped) && wait(attempt) {
				continue
			}
			return mapped
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			mapped := mapError(err)
			if IsSerializationError(mapped) && wait(attempt) {
				continue
			}
			return mapped
		}
		return nil
	}
	return ErrRetriesExceeded
}

// inTx runs body in a read-write transaction on the pool.
func (r *Repository) inTx(ctx context.Context, op string, body func(pgx.Tx) error) error {
	begin := func(ctx context.Context) (pgx.Tx, error) {
		return r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	}
	onBackoff := func(attempt int, delay time.Duration) {
		r.logger.Debug("retrying transaction",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
	}
	return executeWithRetry(ctx, r.retry, begin, body, onBackoff)
}
