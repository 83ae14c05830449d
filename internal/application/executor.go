package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Defaults for ExecutorConfig.
const (
	DefaultExecuteInterval = 3 * time.Second
	DefaultStatusInterval  = 30 * time.Second
)

// ExecutorConfig controls the consumer cadence.
type ExecutorConfig struct {
	Interval       time.Duration
	StatusInterval time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultExecuteInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	return c
}

// Executor drains the command queue at its own cadence and hands each command
// to the sink. One command is executed per tick; a tick waits at most half an
// interval for a command so it never holds the loop past the next tick.
type Executor struct {
	queue *CommandQueue
	sink  driven.CommandSink
	cfg   ExecutorConfig

	executed atomic.Int64
	failed   atomic.Int64
}

// NewExecutor creates an Executor consuming queue into sink.
func NewExecutor(queue *CommandQueue, sink driven.CommandSink, cfg ExecutorConfig) *Executor {
	return &Executor{
		queue: queue,
		sink:  sink,
		cfg:   cfg.withDefaults(),
	}
}

// Run executes queued commands every Interval until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	slog.Info("command executor running", "interval", e.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("command executor stopped", "pending", e.queue.Size())
			return nil
		case <-ticker.C:
			e.ExecuteNext(ctx)
		}
	}
}

// RunStatus reports queue depth every StatusInterval until ctx is cancelled.
func (e *Executor) RunStatus(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.reportQueue()
		}
	}
}

// ExecuteNext polls for one command and executes it. It reports whether a
// command was taken from the queue.
func (e *Executor) ExecuteNext(ctx context.Context) bool {
	cmd, ok, err := e.queue.Poll(ctx, e.cfg.Interval/2)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Debug("command poll interrupted", "error", err)
		} else {
			slog.Error("command poll failed", "error", err)
		}
		return false
	}
	if !ok {
		slog.Debug("no commands in queue")
		return false
	}

	e.execute(ctx, cmd)
	return true
}

// execute runs the sink for one command. Errors and panics are logged and
// counted; they never stop the executor.
func (e *Executor) execute(ctx context.Context, cmd model.Command) {
	start := time.Now()

	err := e.safeExecute(ctx, cmd)
	if err != nil {
		e.failed.Add(1)
		slog.Error("command execution failed",
			"id", cmd.ID,
			"type", cmd.Type,
			"doc", cmd.DocToken,
			"comment", cmd.SourceID(),
			"error", err,
		)
		return
	}

	e.executed.Add(1)
	slog.Debug("command executed",
		"id", cmd.ID,
		"type", cmd.Type,
		"doc", cmd.DocToken,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (e *Executor) safeExecute(ctx context.Context, cmd model.Command) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("command sink panicked: %v", v)
		}
	}()
	return e.sink.Execute(ctx, cmd)
}

func (e *Executor) reportQueue() {
	size := e.queue.Size()
	if size > 0 {
		slog.Info("commands pending in queue", "size", size, "capacity", e.queue.Capacity())
		return
	}
	slog.Debug("command queue empty")
}

// Executed returns the number of commands the sink accepted.
func (e *Executor) Executed() int64 { return e.executed.Load() }

// Failed returns the number of commands the sink rejected or panicked on.
func (e *Executor) Failed() int64 { return e.failed.Load() }
