package model

import "time"

// RequirementStatus is the tracker state of a requirement derived from a comment.
type RequirementStatus string

const (
	RequirementOpen     RequirementStatus = "open"
	RequirementResolved RequirementStatus = "resolved"
	RequirementRemoved  RequirementStatus = "removed"
)

// Requirement is a tracker entry keyed by document and source comment.
type Requirement struct {
	DocToken    string
	CommentID   string
	Summary     string
	Author      string
	Status      RequirementStatus
	LastCommand CommandType
	Revision    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RequirementChange is one command as the tracker sees it.
type RequirementChange struct {
	DocToken  string
	CommentID string
	Command   CommandType
	Summary   string
	Author    string
	At        time.Time
}

// NextRequirement returns the requirement after change is applied to
// existing, which is nil when the comment has no tracker entry yet. A command
// for an unknown comment creates the entry, so comments that predate the
// watch are tracked from their first change.
func NextRequirement(existing *Requirement, change RequirementChange) Requirement {
	next := Requirement{
		DocToken:  change.DocToken,
		CommentID: change.CommentID,
		Summary:   change.Summary,
		Author:    change.Author,
		Status:    RequirementOpen,
		Revision:  1,
		CreatedAt: change.At,
	}
	if existing != nil {
		next = *existing
		next.Revision = existing.Revision + 1
		if change.Summary != "" {
			next.Summary = change.Summary
		}
		if change.Author != "" {
			next.Author = change.Author
		}
	}

	switch change.Command {
	case CommandAdd, CommandReopen:
		next.Status = RequirementOpen
	case CommandResolve:
		next.Status = RequirementResolved
	case CommandRemove:
		next.Status = RequirementRemoved
	case CommandUpdate:
		if existing == nil {
			next.Status = RequirementOpen
		}
	}

	next.LastCommand = change.Command
	next.UpdatedAt = change.At
	return next
}
