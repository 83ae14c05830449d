package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandSink = (*TrackerSink)(nil)

// trackerSummaryLimit caps the summary stored with a requirement.
const trackerSummaryLimit = 280

// ErrNoSourceComment is returned for commands that do not reference a comment.
var ErrNoSourceComment = errors.New("command has no source comment")

// TrackerSink applies commands to the requirement tracker.
type TrackerSink struct {
	store driven.RequirementStore
}

// NewTrackerSink creates a TrackerSink writing to store.
func NewTrackerSink(store driven.RequirementStore) *TrackerSink {
	return &TrackerSink{store: store}
}

// Execute converts the command into a requirement change and applies it.
func (s *TrackerSink) Execute(ctx context.Context, cmd model.Command) error {
	if cmd.Source == nil || cmd.Source.ID == "" {
		return fmt.Errorf("apply %s %s: %w", cmd.Type, cmd.ID, ErrNoSourceComment)
	}

	change := model.RequirementChange{
		DocToken:  cmd.DocToken,
		CommentID: cmd.Source.ID,
		Command:   cmd.Type,
		Summary:   PlainText(cmd.Content, trackerSummaryLimit),
		Author:    cmd.Source.AuthorName,
		At:        cmd.CreatedAt,
	}

	req, err := s.store.Apply(ctx, change)
	if err != nil {
		return fmt.Errorf("apply %s to requirement %s: %w", cmd.Type, cmd.Source.ID, err)
	}

	slog.Debug("requirement updated",
		"doc", req.DocToken,
		"comment", req.CommentID,
		"status", req.Status,
		"revision", req.Revision,
	)
	return nil
}
