// Package application contains use-case orchestration services.
package application

import (
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// updateTimeTolerance is the largest difference, in whole seconds, between two
// update timestamps that is still treated as "unchanged". Remote sources report
// timestamps with jitter and mixed precision.
const updateTimeTolerance = 1

// Reasons attached to detected events.
const (
	reasonNew      = "comment added"
	reasonDeleted  = "comment deleted"
	reasonResolved = "comment resolved"
	reasonReopened = "comment reopened"
	reasonContent  = "comment content changed"
	reasonMetadata = "comment metadata changed"
)

// Diff compares two snapshots and returns the ordered list of change events.
//
// A nil old snapshot is the baseline poll of a watch and never produces events.
// New and changed comments are reported in the new snapshot's order, followed
// by deleted comments in the old snapshot's order. At most one event is
// produced per comment.
func Diff(old, current *model.Snapshot) []model.ChangeEvent {
	events := []model.ChangeEvent{}

	if current == nil || old == nil {
		return events
	}

	for _, id := range current.IDs() {
		newComment, _ := current.Comment(id)

		oldComment, existed := old.Comment(id)
		if !existed {
			events = append(events, model.ChangeEvent{Type: model.EventNew, Comment: newComment, Reason: reasonNew})
			continue
		}

		if event, changed := compareComments(oldComment, newComment); changed {
			events = append(events, event)
		}
	}

	for _, id := range old.IDs() {
		if current.Contains(id) {
			continue
		}
		deleted, _ := old.Comment(id)
		events = append(events, model.ChangeEvent{Type: model.EventDelete, Comment: deleted, Reason: reasonDeleted})
	}

	return events
}

// compareComments classifies the change between two versions of one comment.
// Checks run in precedence order and the first match wins.
func compareComments(old, current model.Comment) (model.ChangeEvent, bool) {
	if updateTimesEqual(old.UpdatedAt, current.UpdatedAt) {
		return model.ChangeEvent{}, false
	}

	if old.Resolved != current.Resolved {
		if current.Resolved {
			return model.ChangeEvent{Type: model.EventResolve, Comment: current, Reason: reasonResolved}, true
		}
		return model.ChangeEvent{Type: model.EventUnresolve, Comment: current, Reason: reasonReopened}, true
	}

	if old.Content != current.Content {
		return model.ChangeEvent{Type: model.EventEdit, Comment: current, Reason: reasonContent}, true
	}

	if metadataChanged(old, current) {
		return model.ChangeEvent{Type: model.EventEdit, Comment: current, Reason: reasonMetadata}, true
	}

	return model.ChangeEvent{}, false
}

// updateTimesEqual compares update timestamps at whole-second precision with
// the configured tolerance. Two missing timestamps are equal; one missing
// timestamp never is.
func updateTimesEqual(a, b time.Time) bool {
	if a.IsZero() && b.IsZero() {
		return true
	}
	if a.IsZero() || b.IsZero() {
		return false
	}

	delta := a.Unix() - b.Unix()
	if delta < 0 {
		delta = -delta
	}
	return delta <= updateTimeTolerance
}

func metadataChanged(old, current model.Comment) bool {
	return old.AuthorID != current.AuthorID ||
		old.AuthorName != current.AuthorName ||
		old.ParentID != current.ParentID ||
		old.Position != current.Position
}
