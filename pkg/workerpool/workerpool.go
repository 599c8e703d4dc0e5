// Package workerpool provides simple concurrent processing utilities.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// Each runs process for every item with at most workerCount items in flight.
// A failing item does not stop the others; all item errors are joined into
// the returned error. Only ctx cancellation stops the pool early.
func Each[T any](
	ctx context.Context,
	workerCount int,
	items []T,
	process func(context.Context, T) error,
) error {
	if workerCount <= 0 {
		workerCount = 1
	}

	tasks := make(chan T)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := process(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- item:
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
