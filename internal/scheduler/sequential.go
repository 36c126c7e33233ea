package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
)

// Sequential runs tasks strictly one at a time in submission order. It is
// the mechanism that keeps overlapping build triggers from racing on the
// same caches and output directory.
type Sequential[T any] struct {
	jobs    chan sequentialJob[T]
	pending atomic.Int64

	// mu guards closed together with the inflight accounting: a task is
	// either rejected or counted before Shutdown starts draining, never
	// lost in between.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once
	logger *slog.Logger
}

type sequentialJob[T any] struct {
	ctx   context.Context
	task  Task[T]
	reply chan sequentialReply[T]
}

type sequentialReply[T any] struct {
	result Result[T]
	err    error
}

// NewSequential creates and starts a sequential scheduler.
func NewSequential[T any]() *Sequential[T] {
	s := &Sequential[T]{
		jobs:   make(chan sequentialJob[T]),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	go s.worker()
	return s
}

// WithLogger sets a custom logger.
func (s *Sequential[T]) WithLogger(logger *slog.Logger) *Sequential[T] {
	s.logger = logger
	return s
}

// Schedule enqueues the task and blocks until it has run. Tasks submitted
// while another is executing wait their turn in FIFO order. Safe to call
// concurrently with Shutdown: submissions after shutdown began are rejected
// with an error, submissions accepted before it are drained.
func (s *Sequential[T]) Schedule(ctx context.Context, task Task[T]) (Result[T], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result[T]{}, fmt.Errorf("scheduler is shut down")
	}
	s.pending.Add(1)
	s.inflight.Add(1)
	s.mu.Unlock()

	job := sequentialJob[T]{ctx: ctx, task: task, reply: make(chan sequentialReply[T], 1)}

	select {
	case s.jobs <- job:
	case <-ctx.Done():
		s.pending.Add(-1)
		s.inflight.Done()
		return Result[T]{}, ctx.Err()
	}

	r := <-job.reply
	s.inflight.Done()
	return r.result, r.err
}

// Running reports whether any task is queued or executing.
func (s *Sequential[T]) Running() bool {
	return s.pending.Load() > 0
}

// Shutdown stops accepting tasks and waits for accepted tasks to drain or
// the context to expire. The jobs channel is never closed, so a Schedule
// racing with Shutdown either gets rejected or runs to completion; it can
// never send on a closed channel. On context expiry the worker is left
// running so already-accepted tasks still complete.
func (s *Sequential[T]) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown interrupted: %w", ctx.Err())
	}

	s.stop.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

func (s *Sequential[T]) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.jobs:
			value, err := job.task.Run(job.ctx)
			s.pending.Add(-1)
			if err != nil {
				s.logger.Debug("Sequential task failed", logfields.TaskID(job.task.ID), logfields.Error(err))
				job.reply <- sequentialReply[T]{err: err}
				continue
			}
			job.reply <- sequentialReply[T]{result: Result[T]{ID: job.task.ID, Value: value}}
		}
	}
}
