package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventPublisher = (*Dispatcher)(nil)

// defaultHandoffCapacity bounds the number of published batches waiting for
// the dispatch worker.
const defaultHandoffCapacity = 100

// commandTable maps every event type to its command type. It is indexed by
// model.EventType and sized by model.EventTypeCount, so adding an event type
// without a command fails TestCommandTable_CoversEveryEventType.
var commandTable = [model.EventTypeCount]model.CommandType{
	model.EventNew:       model.CommandAdd,
	model.EventEdit:      model.CommandUpdate,
	model.EventDelete:    model.CommandRemove,
	model.EventResolve:   model.CommandResolve,
	model.EventUnresolve: model.CommandReopen,
}

// CommandTypeFor returns the command type for an event type. ok is false for
// values outside the closed set.
func CommandTypeFor(t model.EventType) (model.CommandType, bool) {
	if !t.Valid() {
		return "", false
	}
	return commandTable[t], true
}

// eventBatch is the unit of hand-off between a poll tick and the dispatch worker.
type eventBatch struct {
	docToken string
	events   []model.ChangeEvent
}

// Dispatcher turns change events into commands and offers them to the command
// queue on its own goroutine. Batches are processed one at a time in the order
// they were published, so per-document ordering holds end to end.
type Dispatcher struct {
	queue   *CommandQueue
	handoff chan eventBatch
	now     func() time.Time
	newID   func() string

	dispatched atomic.Int64
	dropped    atomic.Int64
	unknown    atomic.Int64
}

// NewDispatcher creates a Dispatcher feeding queue. handoffCapacity bounds the
// batches waiting for the worker; a non-positive value selects the default.
func NewDispatcher(queue *CommandQueue, handoffCapacity int) *Dispatcher {
	if handoffCapacity <= 0 {
		handoffCapacity = defaultHandoffCapacity
	}
	return &Dispatcher{
		queue:   queue,
		handoff: make(chan eventBatch, handoffCapacity),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Publish hands the events of one tick to the dispatch worker and returns
// without waiting for them to be queued or consumed.
func (d *Dispatcher) Publish(ctx context.Context, docToken string, events []model.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	batch := eventBatch{docToken: docToken, events: make([]model.ChangeEvent, len(events))}
	copy(batch.events, events)

	select {
	case d.handoff <- batch:
		slog.Debug("published change events", "doc", docToken, "events", len(events))
	case <-ctx.Done():
		slog.Warn("change events discarded on shutdown", "doc", docToken, "events", len(events))
	}
}

// Run processes published batches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("event dispatcher stopped")
			return nil
		case batch := <-d.handoff:
			d.dispatch(batch)
		}
	}
}

// dispatch maps and queues one batch in event order.
func (d *Dispatcher) dispatch(batch eventBatch) {
	for _, event := range batch.events {
		cmd, ok := d.toCommand(batch.docToken, event)
		if !ok {
			d.unknown.Add(1)
			slog.Warn("no command mapping for event type", "doc", batch.docToken, "event_type", int(event.Type))
			continue
		}

		if !d.queue.Offer(cmd) {
			d.dropped.Add(1)
			slog.Warn("failed to queue command, queue is full",
				"doc", batch.docToken,
				"type", cmd.Type,
				"comment", event.Comment.ID,
				"capacity", d.queue.Capacity(),
				"error", model.ErrQueueFull,
			)
			continue
		}

		d.dispatched.Add(1)
		slog.Info("queued command",
			"doc", batch.docToken,
			"type", cmd.Type,
			"event", event.Type.String(),
			"comment", event.Comment.ID,
		)
	}
}

// toCommand builds the command for a single event.
func (d *Dispatcher) toCommand(docToken string, event model.ChangeEvent) (model.Command, bool) {
	cmdType, ok := CommandTypeFor(event.Type)
	if !ok {
		return model.Command{}, false
	}

	source := event.Comment
	return model.Command{
		ID:        d.newID(),
		Type:      cmdType,
		Content:   source.Content,
		Source:    &source,
		CreatedAt: d.now(),
		DocToken:  docToken,
	}, true
}

// Dispatched returns the number of commands accepted by the queue.
func (d *Dispatcher) Dispatched() int64 { return d.dispatched.Load() }

// Dropped returns the number of commands rejected by a full queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Unknown returns the number of events that had no command mapping.
func (d *Dispatcher) Unknown() int64 { return d.unknown.Load() }

// Pending returns the number of published batches not yet dispatched.
func (d *Dispatcher) Pending() int { return len(d.handoff) }
