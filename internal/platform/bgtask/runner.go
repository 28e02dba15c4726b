// Package bgtask runs fire-and-forget work after a reply has been sent.
// Tasks get a context detached from the request, and their failures are
// reported on the runner's own error channel instead of the caller's.
package bgtask

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type TaskError struct {
	Name    string
	TraceID string
	Err     error
}

type Options struct {
	Timeout     time.Duration
	Concurrency int
	// OnError is called from the drain loop for every failed task.
	OnError func(TaskError)
}

type Runner struct {
	log     *logger.Logger
	timeout time.Duration
	sem     chan struct{}
	errs    chan TaskError
	onError func(TaskError)

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
	drained chan struct{}
	once    sync.Once
}

func New(log *logger.Logger, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 32
	}
	r := &Runner{
		log:     log.With("service", "bgtask"),
		timeout: opts.Timeout,
		sem:     make(chan struct{}, opts.Concurrency),
		errs:    make(chan TaskError, 64),
		onError: opts.OnError,
		drained: make(chan struct{}),
	}
	go r.drain()
	return r
}

// Go schedules fn. ctx only contributes its values (trace ids); its
// cancellation does not reach fn. Tasks scheduled after Close has started
// are dropped and logged.
func (r *Runner) Go(ctx context.Context, name, traceID string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		r.log.Warn("background task dropped, runner closing", "task", name, "trace_id", traceID)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		err := func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v\n%s", p, truncate(string(debug.Stack()), 2048))
				}
			}()
			return fn(tctx)
		}()
		if err != nil {
			r.errs <- TaskError{Name: name, TraceID: traceID, Err: err}
		}
	}()
}

// Wait blocks until every scheduled task has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Close waits for running tasks, then stops the drain loop.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.once.Do(func() { close(r.errs) })
	<-r.drained
	return nil
}

func (r *Runner) drain() {
	defer close(r.drained)
	for te := range r.errs {
		r.log.Warn("background task failed", "task", te.Name, "trace_id", te.TraceID, "error", te.Err)
		if r.onError != nil {
			r.onError(te)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
