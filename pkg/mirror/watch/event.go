// Package watch implements the per-task recursive filesystem watcher and
// trailing-edge debouncer (spec.md §4.7). A Watcher watches a task's
// source tree recursively via fsnotify (adding a watch per directory and
// following newly created directories), filters to
// {Create, Modify, Remove}, and feeds a bounded queue that Debounce
// drains into coalesced synthetic events.
package watch

// EventKind is the filtered event taxonomy the watcher forwards.
type EventKind int

const (
	EventCreate EventKind = iota
	EventModify
	EventRemove
	EventOther
)

// String renders the lowercase wire name used in watch-event UI payloads
// (spec.md §6).
func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventRemove:
		return "remove"
	default:
		return "other"
	}
}

// RawEvent is one filtered filesystem event before debouncing.
type RawEvent struct {
	Kind EventKind
	Path string
}

// SyntheticEvent is the coalesced output of a debounce window: the union
// of every observed path and the kind of the last event seen before the
// quiet period elapsed (spec.md §4.7).
type SyntheticEvent struct {
	TaskID string
	Kind   EventKind
	Paths  []string
}
