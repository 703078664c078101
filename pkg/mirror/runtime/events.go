package runtime

import "github.com/foldmirror/foldmirror/pkg/mirror/conflict"

// Events is the UI notification surface the coordinator drives
// (spec.md §6). A desktop shell or CLI wires an implementation; the core
// never assumes a particular transport. The Conflict* methods carry the
// conflict review store's events (spec.md §6's conflict-review-*
// family) through the same sink as every other runtime event.
type Events interface {
	SyncProgress(taskID, message string, current, total int64)
	NewLogEntry(entry LogEventEntry)
	NewLogsBatch(entries []LogEventEntry)
	WatchEvent(taskID string, eventType string, paths []string)
	RuntimeWatchState(taskID string, watching bool, reason string, hasReason bool)
	RuntimeSyncState(taskID string, syncing bool, reason string, hasReason bool)
	RuntimeSyncQueueState(taskID string, queued bool, reason string, hasReason bool)
	ConflictQueueChanged(sessions []conflict.Summary)
	ConflictSessionOpened(sessionID string)
	ConflictSessionUpdated(sessionID string, pendingCount int)
}

// LogEventEntry is the payload shape for new-log-task/new-logs-batch
// events (spec.md §6).
type LogEventEntry struct {
	TaskID    string
	HasTaskID bool
	Level     string
	Category  string
	Message   string
	Timestamp string
}

// NoopEvents discards every event; useful for tests and headless
// operation.
type NoopEvents struct{}

func (NoopEvents) SyncProgress(taskID, message string, current, total int64)      {}
func (NoopEvents) NewLogEntry(entry LogEventEntry)                                {}
func (NoopEvents) NewLogsBatch(entries []LogEventEntry)                           {}
func (NoopEvents) WatchEvent(taskID string, eventType string, paths []string)     {}
func (NoopEvents) RuntimeWatchState(taskID string, watching bool, reason string, hasReason bool) {}
func (NoopEvents) RuntimeSyncState(taskID string, syncing bool, reason string, hasReason bool)    {}
func (NoopEvents) RuntimeSyncQueueState(taskID string, queued bool, reason string, hasReason bool) {}
func (NoopEvents) ConflictQueueChanged(sessions []conflict.Summary)                                {}
func (NoopEvents) ConflictSessionOpened(sessionID string)                                          {}
func (NoopEvents) ConflictSessionUpdated(sessionID string, pendingCount int)                        {}
