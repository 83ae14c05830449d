package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// DefaultIdleLimit is the number of consecutive ticks without changes after
// which a watch stops itself.
const DefaultIdleLimit = 10

// TickOutcome describes what a single poll tick did.
type TickOutcome int

const (
	// TickInactive means the watcher was not watching; nothing happened.
	TickInactive TickOutcome = iota
	// TickOverlap means a previous tick was still running and this one was skipped.
	TickOverlap
	// TickIdle means the fetch succeeded and no changes were found.
	TickIdle
	// TickChanged means changes were found and published.
	TickChanged
	// TickFailed means the fetch failed; the tick counted as idle.
	TickFailed
	// TickAutoStopped means the idle limit was reached and the watch stopped itself.
	TickAutoStopped
	// TickDiscarded means the watch was stopped or restarted while fetching.
	TickDiscarded
)

// String returns a human-readable name for the outcome.
func (o TickOutcome) String() string {
	switch o {
	case TickInactive:
		return "inactive"
	case TickOverlap:
		return "overlap"
	case TickIdle:
		return "idle"
	case TickChanged:
		return "changed"
	case TickFailed:
		return "failed"
	case TickAutoStopped:
		return "auto_stopped"
	case TickDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Watcher is the polling state machine for one document watch. It owns the
// active token, the last snapshot and the idle counter; all three change only
// under mu. Start and Stop may be called concurrently with Tick.
type Watcher struct {
	fetcher   driven.CommentFetcher
	publisher driven.EventPublisher
	idleLimit int
	now       func() time.Time

	// tickMu serializes ticks. A tick that finds it held is skipped.
	tickMu sync.Mutex

	mu         sync.Mutex
	token      string
	lastToken  string
	state      model.WatchState
	snapshot   *model.Snapshot
	idleCount  int
	failures   int
	lastErr    string
	lastTickAt time.Time
	generation uint64
	ticks      int64
	emitted    int64
}

// NewWatcher creates an idle Watcher. A non-positive idleLimit selects
// DefaultIdleLimit.
func NewWatcher(fetcher driven.CommentFetcher, publisher driven.EventPublisher, idleLimit int) *Watcher {
	if idleLimit <= 0 {
		idleLimit = DefaultIdleLimit
	}
	return &Watcher{
		fetcher:   fetcher,
		publisher: publisher,
		idleLimit: idleLimit,
		now:       time.Now,
		state:     model.WatchIdle,
	}
}

// Start begins watching docToken, discarding any previous snapshot and
// counters. Starting a different token implicitly stops the current watch.
func (w *Watcher) Start(docToken string) error {
	docToken = strings.TrimSpace(docToken)
	if docToken == "" {
		return fmt.Errorf("start watch: %w", model.ErrInvalidToken)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.token != "" && w.token != docToken {
		slog.Info("switching watched document", "from", w.token, "to", docToken)
	}

	w.resetLocked()
	w.token = docToken
	w.lastToken = docToken
	w.state = model.WatchWatching

	slog.Info("started watching document", "doc", docToken, "idle_limit", w.idleLimit)
	return nil
}

// Stop clears the watch and returns the watcher to idle. It is a no-op when
// already idle. A tick in flight when Stop is called has its results discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == model.WatchIdle && w.token == "" {
		return
	}

	docToken := w.token
	w.resetLocked()
	w.state = model.WatchIdle

	if docToken != "" {
		slog.Info("stopped watching document", "doc", docToken)
	}
}

// Tick runs one poll: fetch, snapshot, diff, then either advance the idle
// counter or publish the events in order. Fetch errors never escape a tick.
func (w *Watcher) Tick(ctx context.Context) TickOutcome {
	if !w.tickMu.TryLock() {
		slog.Debug("previous tick still running, skipping")
		return TickOverlap
	}
	defer w.tickMu.Unlock()

	w.mu.Lock()
	if w.state != model.WatchWatching {
		w.mu.Unlock()
		return TickInactive
	}
	docToken, generation := w.token, w.generation
	w.mu.Unlock()

	slog.Debug("polling comments", "doc", docToken)
	comments, fetchErr := w.fetcher.FetchComments(ctx, docToken)
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.generation != generation {
		slog.Debug("watch changed during fetch, discarding results", "doc", docToken)
		return TickDiscarded
	}

	w.ticks++
	w.lastTickAt = now

	if fetchErr != nil {
		w.failures++
		w.lastErr = fetchErr.Error()
		slog.Error("poll failed",
			"doc", docToken,
			"consecutive_failures", w.failures,
			"error", fetchErr,
		)
		if w.countIdleLocked(docToken) {
			return TickAutoStopped
		}
		return TickFailed
	}

	w.failures = 0
	w.lastErr = ""

	next := model.NewSnapshot(docToken, comments, now)
	events := Diff(w.snapshot, next)

	if len(events) == 0 {
		if w.countIdleLocked(docToken) {
			return TickAutoStopped
		}
		w.snapshot = next
		return TickIdle
	}

	w.idleCount = 0
	w.snapshot = next
	w.emitted += int64(len(events))
	slog.Info("detected comment events", "doc", next.DocToken(), "comments", next.Len(), "events", len(events))

	// Publishing under mu keeps a concurrent Stop from interleaving with the
	// hand-off; Publish only enqueues the batch.
	w.publisher.Publish(ctx, docToken, events)
	return TickChanged
}

// countIdleLocked advances the idle counter and auto-stops the watch when the
// limit is reached. It reports whether the watch stopped.
func (w *Watcher) countIdleLocked(docToken string) bool {
	w.idleCount++
	slog.Debug("no changes detected", "doc", docToken, "idle_count", w.idleCount, "idle_limit", w.idleLimit)

	if w.idleCount < w.idleLimit {
		return false
	}

	slog.Info("reached idle limit, stopping watch", "doc", docToken, "idle_limit", w.idleLimit)
	w.token = ""
	w.snapshot = nil
	w.idleCount = 0
	w.generation++
	w.state = model.WatchAutoStopped
	return true
}

// resetLocked clears per-watch state and invalidates in-flight ticks.
func (w *Watcher) resetLocked() {
	w.token = ""
	w.snapshot = nil
	w.idleCount = 0
	w.failures = 0
	w.lastErr = ""
	w.ticks = 0
	w.emitted = 0
	w.lastTickAt = time.Time{}
	w.generation++
}

// IsWatching reports whether the watcher is actively polling a document.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == model.WatchWatching && w.token != ""
}

// Token returns the active document token, or "" when not watching.
func (w *Watcher) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}

// IdleCount returns the current number of consecutive ticks without changes.
func (w *Watcher) IdleCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.idleCount
}

// Snapshot returns the last stored snapshot, or nil before the baseline poll.
func (w *Watcher) Snapshot() *model.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

// Status returns a copy of the watcher's state. After an auto-stop DocToken
// still names the document that was being watched.
func (w *Watcher) Status() model.WatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	docToken := w.token
	if docToken == "" && w.state == model.WatchAutoStopped {
		docToken = w.lastToken
	}

	status := model.WatchStatus{
		DocToken:            docToken,
		State:               w.state,
		IdleCount:           w.idleCount,
		IdleLimit:           w.idleLimit,
		ConsecutiveFailures: w.failures,
		LastError:           w.lastErr,
		LastTickAt:          w.lastTickAt,
		Ticks:               w.ticks,
		EventsEmitted:       w.emitted,
	}
	if w.snapshot != nil {
		status.HasSnapshot = true
		status.LastSnapshotAt = w.snapshot.TakenAt()
		status.LastCommentCount = w.snapshot.Len()
	}
	return status
}
