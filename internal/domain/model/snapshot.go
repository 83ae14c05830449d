package model

import "time"

// Snapshot is the state of a document's comment thread at one poll tick.
// It is immutable after construction and iterates in the order comments were
// first seen in the fetched list, so diffs over a fixed pair are deterministic.
type Snapshot struct {
	takenAt  time.Time
	docToken string
	order    []string
	comments map[string]Comment
}

// NewSnapshot builds a snapshot from a raw comment list. Comments without an
// ID are skipped. A repeated ID keeps its first position and its last value.
func NewSnapshot(docToken string, comments []Comment, takenAt time.Time) *Snapshot {
	s := &Snapshot{
		takenAt:  takenAt,
		docToken: docToken,
		order:    make([]string, 0, len(comments)),
		comments: make(map[string]Comment, len(comments)),
	}

	for _, c := range comments {
		if c.ID == "" {
			continue
		}
		if _, seen := s.comments[c.ID]; !seen {
			s.order = append(s.order, c.ID)
		}
		s.comments[c.ID] = c
	}

	return s
}

// TakenAt returns when the snapshot was built.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// DocToken returns the document the snapshot belongs to.
func (s *Snapshot) DocToken() string { return s.docToken }

// Len returns the number of distinct comments.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Contains reports whether a comment with the given ID is present.
func (s *Snapshot) Contains(id string) bool {
	_, ok := s.comments[id]
	return ok
}

// Comment returns the comment with the given ID.
func (s *Snapshot) Comment(id string) (Comment, bool) {
	c, ok := s.comments[id]
	return c, ok
}

// IDs returns a copy of the comment IDs in iteration order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}
