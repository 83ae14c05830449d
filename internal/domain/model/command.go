package model

import (
	"fmt"
	"time"
)

// CommandType is the tag a downstream executor acts on.
type CommandType string

const (
	CommandAdd     CommandType = "ADD"
	CommandUpdate  CommandType = "UPDATE"
	CommandRemove  CommandType = "REMOVE"
	CommandResolve CommandType = "RESOLVE"
	CommandReopen  CommandType = "REOPEN"
)

// describeContentLimit caps the content shown by Command.Describe.
const describeContentLimit = 50

// Command is the unit handed from the dispatcher to the executor. It is built
// once from exactly one ChangeEvent and never mutated afterwards.
type Command struct {
	ID        string
	Type      CommandType
	Content   string
	Source    *Comment
	CreatedAt time.Time
	DocToken  string
}

// SourceID returns the ID of the originating comment, or "" when unknown.
func (c Command) SourceID() string {
	if c.Source == nil {
		return ""
	}
	return c.Source.ID
}

// Describe renders a one-line summary such as
// "[UPDATE] 2026-01-02T15:04:05Z - first fifty characters...".
func (c Command) Describe() string {
	content := "(no content)"
	if c.Content != "" {
		content = Truncate(c.Content, describeContentLimit) + "..."
	}
	return fmt.Sprintf("[%s] %s - %s", c.Type, c.CreatedAt.UTC().Format(time.RFC3339), content)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
