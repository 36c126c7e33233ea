// Package scheduler provides the two scheduling policies used by the build
// engine: a strict-FIFO sequential scheduler that serializes whole build
// cycles, and a bounded-concurrency task queue whose results are always
// index-aligned with its input.
package scheduler

import "context"

// Task is a unit of schedulable work. The ID is preserved through
// scheduling for result correlation and logging.
type Task[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Result pairs a task's ID with its value.
type Result[T any] struct {
	ID    string
	Value T
}
