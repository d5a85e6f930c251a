// Package worker runs independent tasks on a bounded set of goroutines.
// It drives both collection loads and basemap tile rendering.
package worker

import (
	"context"
	"sync"
	"time"
)

// Handler processes one task.
type Handler[T any] func(ctx context.Context, task T) error

// Result represents the outcome of a task.
type Result[T any] struct {
	Task    T
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config[T any] struct {
	Workers    int
	Handle     Handler[T]
	OnProgress ProgressFunc
}

// Pool runs tasks in parallel.
type Pool[T any] struct {
	workers    int
	handle     Handler[T]
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New[T any](cfg Config[T]) *Pool[T] {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool[T]{
		workers:    workers,
		handle:     cfg.Handle,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns results in completion order.
// It blocks until every task has finished or been cancelled.
func (p *Pool[T]) Run(ctx context.Context, tasks []T) []Result[T] {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan T, len(tasks))
	resultCh := make(chan Result[T], len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result[T], 0, len(tasks))
	done := make(chan struct{})

	go func() {
		var failed int
		for result := range resultCh {
			results = append(results, result)
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(len(results), len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool[T]) worker(ctx context.Context, tasks <-chan T, results chan<- Result[T]) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result[T]{Task: task, Err: err}
			continue
		}

		start := time.Now()
		err := p.handle(ctx, task)
		results <- Result[T]{
			Task:    task,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
