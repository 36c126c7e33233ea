package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// QueueOptions tunes RunTaskQueue. Concurrency zero means "unspecified" and
// is clamped to [1, len(tasks)]; a negative value fails validation.
type QueueOptions struct {
	Concurrency int
}

// RunTaskQueue runs up to Concurrency tasks in parallel and returns results
// in the original input order, regardless of completion order: results[i]
// always corresponds to tasks[i]. The first task error cancels the
// remaining tasks and is returned.
func RunTaskQueue[T any](ctx context.Context, tasks []Task[T], opts QueueOptions) ([]Result[T], error) {
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be a positive integer, got %d", opts.Concurrency)
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = len(tasks)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(tasks) && len(tasks) > 0 {
		concurrency = len(tasks)
	}

	if len(tasks) == 0 {
		return []Result[T]{}, nil
	}

	results := make([]Result[T], len(tasks))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, ctx := errgroup.WithContext(ctx)

	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			value, err := task.Run(ctx)
			if err != nil {
				return fmt.Errorf("task %s failed: %w", task.ID, err)
			}
			results[i] = Result[T]{ID: task.ID, Value: value}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
