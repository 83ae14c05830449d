package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// DefaultQueueCapacity is the command queue size used when none is configured.
const DefaultQueueCapacity = 1000

// CommandQueue is a bounded FIFO hand-off between the dispatcher and the
// executor. It never reorders commands and never blocks producers: Offer on a
// full queue fails immediately.
type CommandQueue struct {
	items chan model.Command
}

// NewCommandQueue creates a queue holding at most capacity commands.
// A non-positive capacity selects DefaultQueueCapacity.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	slog.Info("command queue initialized", "capacity", capacity)
	return &CommandQueue{items: make(chan model.Command, capacity)}
}

// Offer appends cmd without blocking. It returns false and leaves the queue
// unchanged when the queue is full.
func (q *CommandQueue) Offer(cmd model.Command) bool {
	select {
	case q.items <- cmd:
		slog.Debug("command offered to queue", "type", cmd.Type, "doc", cmd.DocToken)
		return true
	default:
		return false
	}
}

// Poll waits up to timeout for the next command. ok is false when nothing
// arrived in time. A cancelled context ends the wait with ctx.Err().
func (q *CommandQueue) Poll(ctx context.Context, timeout time.Duration) (cmd model.Command, ok bool, err error) {
	select {
	case cmd = <-q.items:
		return cmd, true, nil
	default:
	}

	if timeout <= 0 {
		return model.Command{}, false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case cmd = <-q.items:
		slog.Debug("command polled from queue", "type", cmd.Type, "doc", cmd.DocToken)
		return cmd, true, nil
	case <-timer.C:
		return model.Command{}, false, nil
	case <-ctx.Done():
		return model.Command{}, false, ctx.Err()
	}
}

// Take blocks until a command is available or ctx is cancelled.
func (q *CommandQueue) Take(ctx context.Context) (model.Command, error) {
	select {
	case cmd := <-q.items:
		slog.Debug("command taken from queue", "type", cmd.Type, "doc", cmd.DocToken)
		return cmd, nil
	case <-ctx.Done():
		return model.Command{}, ctx.Err()
	}
}

// Size returns the number of queued commands.
func (q *CommandQueue) Size() int {
	return len(q.items)
}

// Capacity returns the maximum number of queued commands.
func (q *CommandQueue) Capacity() int {
	return cap(q.items)
}

// IsEmpty reports whether no commands are queued.
func (q *CommandQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear discards every queued command and returns how many were removed.
// Commands offered concurrently with Clear may or may not survive it.
func (q *CommandQueue) Clear() int {
	removed := 0
	for {
		select {
		case <-q.items:
			removed++
		default:
			slog.Info("command queue cleared", "removed", removed)
			return removed
		}
	}
}
