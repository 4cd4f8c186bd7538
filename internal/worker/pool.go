// Package worker renders frame sequences on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/grainmatch/internal/pipeline"
)

// Renderer renders one frame; *pipeline.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, frame pipeline.Frame) (pipeline.Output, error)
}

// Task is one frame to render.
type Task struct {
	Frame pipeline.Frame
}

// Result is the outcome of a Task.
type Result struct {
	Task    Task
	Output  pipeline.Output
	Err     error
	Elapsed time.Duration
}

// Skipped reports whether the frame was left alone because its outputs
// already existed.
func (r Result) Skipped() bool {
	return r.Err == nil && r.Output.Skipped
}

// Tally counts finished frames. Done includes Failed and Skipped.
type Tally struct {
	Done    int
	Total   int
	Failed  int
	Skipped int
}

// Rendered is the number of frames that were actually written.
func (t Tally) Rendered() int {
	return t.Done - t.Failed - t.Skipped
}

func (t *Tally) add(r Result) {
	t.Done++
	switch {
	case r.Err != nil:
		t.Failed++
	case r.Output.Skipped:
		t.Skipped++
	}
}

// Summarize tallies a finished run.
func Summarize(results []Result) Tally {
	t := Tally{Total: len(results)}
	for _, r := range results {
		t.add(r)
	}
	return t
}

// ProgressFunc receives the running tally after every finished frame.
// Calls are serialized.
type ProgressFunc func(Tally)

// Config configures a Pool.
type Config struct {
	Workers    int
	Renderer   Renderer
	OnProgress ProgressFunc
}

// Pool renders frames in parallel.
type Pool struct {
	workers    int
	renderer   Renderer
	onProgress ProgressFunc
}

// New creates a pool; fewer than one worker means one.
func New(cfg Config) *Pool {
	return &Pool{
		workers:    max(cfg.Workers, 1),
		renderer:   cfg.Renderer,
		onProgress: cfg.OnProgress,
	}
}

// Run renders every task and returns one Result per task, in task order.
// After ctx is cancelled no new frames start; frames not yet started get
// ctx.Err() as their error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]Result, len(tasks))
	next := make(chan int)

	var (
		mu    sync.Mutex
		tally = Tally{Total: len(tasks)}
	)
	finish := func(i int, r Result) {
		results[i] = r
		mu.Lock()
		defer mu.Unlock()
		tally.add(r)
		if p.onProgress != nil {
			p.onProgress(tally)
		}
	}

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				finish(i, p.render(ctx, tasks[i]))
			}
		}()
	}

	started := 0
dispatch:
	for ; started < len(tasks); started++ {
		select {
		case next <- started:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(next)
	wg.Wait()

	for i := started; i < len(tasks); i++ {
		finish(i, Result{Task: tasks[i], Err: ctx.Err()})
	}
	return results
}

func (p *Pool) render(ctx context.Context, task Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{Task: task, Err: err}
	}
	start := time.Now()
	out, err := p.renderer.Render(ctx, task.Frame)
	return Result{Task: task, Output: out, Err: err, Elapsed: time.Since(start)}
}
