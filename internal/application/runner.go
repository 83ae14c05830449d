package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// Runner drives the pipeline: the poll loop, the dispatch worker, the execute
// loop and the queue status loop, each on its own goroutine.
type Runner struct {
	manager    *WatchManager
	dispatcher *Dispatcher
	queue      *CommandQueue
	executor   *Executor
}

// NewRunner wires already-constructed pipeline stages together.
func NewRunner(manager *WatchManager, dispatcher *Dispatcher, queue *CommandQueue, executor *Executor) *Runner {
	return &Runner{
		manager:    manager,
		dispatcher: dispatcher,
		queue:      queue,
		executor:   executor,
	}
}

// Run blocks until ctx is cancelled or a stage fails. Every watch is stopped
// before it returns.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.dispatcher.Run(gctx) })
	g.Go(func() error { return r.executor.Run(gctx) })
	g.Go(func() error { return r.executor.RunStatus(gctx) })
	g.Go(func() error { return r.manager.Run(gctx) })

	err := g.Wait()
	r.manager.StopAll()
	return err
}

// QueueStatus reports queue depth and pipeline counters.
func (r *Runner) QueueStatus() model.QueueStatus {
	return model.QueueStatus{
		Size:           r.queue.Size(),
		Capacity:       r.queue.Capacity(),
		PendingBatches: r.dispatcher.Pending(),
		Dispatched:     r.dispatcher.Dispatched(),
		Dropped:        r.dispatcher.Dropped(),
		Executed:       r.executor.Executed(),
		Failed:         r.executor.Failed(),
	}
}

// ClearQueue discards every pending command and returns how many were removed.
func (r *Runner) ClearQueue() int {
	return r.queue.Clear()
}
