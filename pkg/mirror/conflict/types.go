// Package conflict implements the conflict review store (spec.md §4.9):
// per-run capture of "target newer than source" conflicts, per-item
// resolution (force / rename-then-copy / skip) with staleness detection
// and atomic backup.
package conflict

import (
	"fmt"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

// Origin identifies what triggered the sync run that produced a session.
type Origin int

const (
	OriginManual Origin = iota
	OriginWatch
)

// Status is an item's current resolution state.
type Status int

const (
	StatusPending Status = iota
	StatusForceCopied
	StatusSafeCopied
	StatusSkipped
)

// String renders a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusForceCopied:
		return "ForceCopied"
	case StatusSafeCopied:
		return "SafeCopied"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Pending"
	}
}

// Item is one conflict within a session.
type Item struct {
	ID               string
	RelativePath     string
	SourcePath       string
	TargetPath       string
	Source           core.FileSnapshot
	Target           core.FileSnapshot
	Status           Status
	Note             string
	HasNote          bool
	ResolvedAtUnixMs int64
	HasResolvedAt    bool
}

// Session is a collection of conflict items created by a single sync
// run. Sessions outlive the run that created them; they are destroyed by
// explicit Close.
type Session struct {
	ID             string
	TaskID         string
	TaskName       string
	Origin         Origin
	CreatedUnixMs  int64
	Items          []Item
}

// PendingCount reports how many items in the session remain unresolved.
func (s *Session) PendingCount() int {
	count := 0
	for _, item := range s.Items {
		if item.Status == StatusPending {
			count++
		}
	}
	return count
}

// Summary is the lightweight projection used in queue-changed events.
type Summary struct {
	ID            string
	TaskID        string
	TaskName      string
	Origin        Origin
	CreatedUnixMs int64
	PendingCount  int
	TotalCount    int
}

func (s *Session) Summary() Summary {
	return Summary{
		ID:            s.ID,
		TaskID:        s.TaskID,
		TaskName:      s.TaskName,
		Origin:        s.Origin,
		CreatedUnixMs: s.CreatedUnixMs,
		PendingCount:  s.PendingCount(),
		TotalCount:    len(s.Items),
	}
}

// itemID renders the deterministic "item-000001"-style identifier for
// the nth (1-based) item in a detection batch.
func itemID(n int) string {
	return fmt.Sprintf("item-%06d", n)
}

// Action is a caller-requested resolution for a pending item.
type Action int

const (
	ActionSkip Action = iota
	ActionForceCopy
	ActionRenameThenCopy
)

// ResolveRequest is one entry in a batch resolution request.
type ResolveRequest struct {
	ItemID string
	Action Action
}

// ResolveFailure records why a single request in a batch could not be
// applied.
type ResolveFailure struct {
	ItemID  string
	Message string
}

// ResolveOutcome is the result of a batch Resolve call.
type ResolveOutcome struct {
	Resolved     []Item
	Failures     []ResolveFailure
	PendingCount int
}

// CloseResult is the result of a Close call.
type CloseResult struct {
	Closed     bool
	HadPending bool
	SkippedNow int
}
