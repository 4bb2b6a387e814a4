package lsp

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// workerPool runs event-producing tasks off the event loop goroutine. A
// task is any unit of work that needs host/vfs access or may block (a
// handler body, an outgoing jsonrpc2 call, a diagnostics recomputation):
// it runs on one of a fixed number of goroutines and reports its outcome
// back onto the loop's events channel as an Event, never by mutating
// server state directly (spec §4.4).
type workerPool struct {
	tasks  chan func() Event
	events chan<- Event
	group  *errgroup.Group
	cancel context.CancelFunc
}

func newWorkerPool(n int, events chan<- Event) *workerPool {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	p := &workerPool{
		tasks:  make(chan func() Event, 256),
		events: events,
		group:  group,
		cancel: cancel,
	}
	for i := 0; i < n; i++ {
		group.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
	return p
}

func (p *workerPool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(task)
		}
	}
}

// runTask invokes task and, if it panics without having guarded itself
// (guardRequest/guardTask), swallows the panic rather than letting it take
// down this worker goroutine. Request handlers are wrapped in guardRequest
// and turn a panic into an error response themselves. The diagnostics,
// flake bootstrap and outgoing-call tasks are submitted unguarded, so for
// them this is the only net: their panic is swallowed here and no Event is
// sent.
func (p *workerPool) runTask(task func() Event) {
	defer func() {
		recover()
	}()
	if ev := task(); ev != nil {
		p.events <- ev
	}
}

// Submit enqueues fn to run on a worker goroutine. It never blocks the
// caller on task completion; it may briefly block if every worker is busy
// and the task queue is full, applying backpressure to the loop rather
// than growing goroutines without bound.
func (p *workerPool) Submit(fn func() Event) {
	p.tasks <- fn
}

// Close stops accepting new tasks, drains the ones already queued, and
// waits for every worker goroutine to exit.
func (p *workerPool) Close() {
	close(p.tasks)
	_ = p.group.Wait()
	p.cancel()
}
