package model

import "time"

// Comment is a single entry in a document's comment thread as reported by the
// remote system. Identity is ID; every other field may change between polls.
type Comment struct {
	ID         string
	Content    string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time // Zero when the remote omits it.
	UpdatedAt  time.Time // Zero when the remote omits it.
	Resolved   bool
	ParentID   string // Set for replies.
	Position   string // Quoted anchor text or file:line location.
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != ""
}
