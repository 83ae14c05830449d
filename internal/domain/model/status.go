package model

import "time"

// WatchState is the lifecycle state of a single document watch.
type WatchState string

const (
	WatchIdle        WatchState = "idle"
	WatchWatching    WatchState = "watching"
	WatchAutoStopped WatchState = "auto_stopped"
)

// WatchStatus is a point-in-time copy of a watcher's state for introspection.
type WatchStatus struct {
	DocToken            string
	State               WatchState
	IdleCount           int
	IdleLimit           int
	ConsecutiveFailures int
	LastError           string
	LastTickAt          time.Time
	LastSnapshotAt      time.Time
	LastCommentCount    int
	HasSnapshot         bool
	Ticks               int64
	EventsEmitted       int64
}

// Watching reports whether the watch is actively polling.
func (s WatchStatus) Watching() bool {
	return s.State == WatchWatching && s.DocToken != ""
}

// ManagerStatus aggregates the watch manager's view of all watch contexts.
type ManagerStatus struct {
	CurrentDocument  string
	Watching         bool
	WatchedDocuments []string
	Watches          []WatchStatus
}

// QueueStatus reports depth and throughput of the command pipeline.
// PendingBatches counts published event batches not yet turned into commands.
type QueueStatus struct {
	Size           int
	Capacity       int
	PendingBatches int
	Dispatched     int64
	Dropped        int64
	Executed       int64
	Failed         int64
}
