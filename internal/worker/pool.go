// Package worker renders many colorways of a pattern in parallel.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
)

// Renderer renders one colorway and reports where the result went
// (a file path or a swatch book key).
type Renderer interface {
	RenderColorway(ctx context.Context, cw pattern.Colorway) (string, error)
}

// Task is one colorway to render. Index is its position in the input list.
type Task struct {
	Colorway pattern.Colorway
	Index    int
}

// Result is the outcome of a task.
type Result struct {
	Task    Task
	Output  string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called with each finished result and the number of tasks
// finished so far. Calls are serialized.
type ProgressFunc func(r Result, completed, total int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Renderer   Renderer
	OnProgress ProgressFunc
}

// Pool renders colorways with a fixed number of workers.
type Pool struct {
	workers    int
	renderer   Renderer
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		renderer:   cfg.Renderer,
		onProgress: cfg.OnProgress,
	}
}

// Tasks wraps colorways in tasks, keeping their order.
func Tasks(colorways []pattern.Colorway) []Task {
	tasks := make([]Task, len(colorways))
	for i, cw := range colorways {
		tasks[i] = Task{Colorway: cw, Index: i}
	}
	return tasks
}

// Run executes all tasks and returns one result per task that was started,
// sorted by task index. It blocks until all workers finish or ctx is done.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)
			if p.onProgress != nil {
				p.onProgress(result, len(results), len(tasks))
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	sort.Slice(results, func(i, j int) bool {
		return results[i].Task.Index < results[j].Task.Index
	})
	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		out, err := p.renderer.RenderColorway(ctx, task.Colorway)

		results <- Result{
			Task:    task,
			Output:  out,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
