package model

// EventType classifies a change detected between two snapshots.
type EventType int

const (
	EventNew EventType = iota
	EventEdit
	EventDelete
	EventResolve
	EventUnresolve

	// EventTypeCount is the number of defined event types. Lookup tables keyed
	// by EventType are sized with it.
	EventTypeCount
)

// String returns the lower-case name of the event type.
func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventEdit:
		return "edit"
	case EventDelete:
		return "delete"
	case EventResolve:
		return "resolve"
	case EventUnresolve:
		return "unresolve"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the defined event types.
func (t EventType) Valid() bool {
	return t >= EventNew && t < EventTypeCount
}

// ChangeEvent is a single typed change. Comment holds the new state, except for
// EventDelete where it holds the last known state from the previous snapshot.
type ChangeEvent struct {
	Type    EventType
	Comment Comment
	Reason  string
}
