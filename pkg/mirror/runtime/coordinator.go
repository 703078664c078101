// Package runtime implements the runtime coordinator (spec.md §4.8): task
// catalog, watcher reconciliation, sync slot admission, the FIFO queue,
// the dispatcher, and cancellation, wiring the sync engine (scan/diff/
// copy) and the conflict review store together for both manual
// and watch-triggered runs.
package runtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/activity"
	"github.com/foldmirror/foldmirror/pkg/mirror/conflict"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/validation"
	"github.com/foldmirror/foldmirror/pkg/mirror/volume"
	"github.com/foldmirror/foldmirror/pkg/mirror/watch"
)

// maxConcurrentSyncs is the system-wide concurrency cap named by
// spec.md §3.
const maxConcurrentSyncs = 2

// managedWatcher bundles one task's recursive watcher with the
// goroutines and cancellation needed to tear it down cleanly.
type managedWatcher struct {
	source     string
	generation string
	watcher    *watch.Watcher
	cancel     context.CancelFunc
}

// Coordinator is the runtime coordinator. Lock acquisition always
// follows the documented order config -> watchers -> sets -> queue, to
// avoid cycles (spec.md §5).
type Coordinator struct {
	logger     *logging.Logger
	enumerator volume.Enumerator
	events     Events
	conflicts  *conflict.Store
	log        *activity.Ring

	configMu     sync.RWMutex
	config       core.Configuration
	bootstrapped bool

	watchMu  sync.Mutex
	watchers map[string]*managedWatcher

	syncMu      sync.Mutex
	syncing     map[string]bool
	capacitySem *semaphore.Weighted

	queueMu sync.Mutex
	queue   []queueEntry
	queued  map[string]bool

	dispatchMu      sync.Mutex
	dispatcherAlive bool

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	slotReleased *notifier
}

// New constructs a Coordinator with no tasks configured. Call
// SetConfiguration to populate the catalog and start reconciliation.
func New(enumerator volume.Enumerator, events Events, logger *logging.Logger) *Coordinator {
	if events == nil {
		events = NoopEvents{}
	}
	root := logger
	if root == nil {
		root = logging.RootLogger
	}
	coordinatorLogger := root.Sublogger("runtime")

	c := &Coordinator{
		logger:       coordinatorLogger,
		enumerator:   enumerator,
		events:       events,
		watchers:     make(map[string]*managedWatcher),
		syncing:      make(map[string]bool),
		capacitySem:  semaphore.NewWeighted(maxConcurrentSyncs),
		queued:       make(map[string]bool),
		cancels:      make(map[string]context.CancelFunc),
		slotReleased: newNotifier(),
	}
	c.log = activity.New(0, activity.SinkFuncs{
		Entry: func(e activity.Entry) { c.events.NewLogEntry(toLogEventEntry(e)) },
		Batch: func(b []activity.Entry) {
			entries := make([]LogEventEntry, len(b))
			for i, e := range b {
				entries[i] = toLogEventEntry(e)
			}
			c.events.NewLogsBatch(entries)
		},
	})
	c.conflicts = conflict.New(conflictEventsAdapter{c}, coordinatorLogger.Sublogger("conflict"))
	return c
}

// toLogEventEntry converts a ring entry into the new-log-task/
// new-logs-batch event payload shape (spec.md §6).
func toLogEventEntry(e activity.Entry) LogEventEntry {
	return LogEventEntry{
		TaskID:    e.TaskID,
		HasTaskID: e.HasTaskID,
		Level:     e.Level.String(),
		Category:  e.Category.String(),
		Message:   e.Message,
		Timestamp: e.TimestampRFC3339,
	}
}

// conflictEventsAdapter bridges conflict.Events onto the coordinator's
// own Events sink so the desktop shell sees every event through one
// interface.
type conflictEventsAdapter struct{ c *Coordinator }

func (a conflictEventsAdapter) QueueChanged(sessions []conflict.Summary) {
	a.c.events.ConflictQueueChanged(sessions)
}
func (a conflictEventsAdapter) OpenSession(sessionID string) {
	a.c.events.ConflictSessionOpened(sessionID)
}
func (a conflictEventsAdapter) SessionUpdated(sessionID string, pendingCount int) {
	a.c.events.ConflictSessionUpdated(sessionID, pendingCount)
}

// Conflicts exposes the coordinator's conflict review store.
func (c *Coordinator) Conflicts() *conflict.Store {
	return c.conflicts
}

// ActivityLog exposes the coordinator's log/activity ring.
func (c *Coordinator) ActivityLog() *activity.Ring {
	return c.log
}

// snapshotConfig returns a copy of the current configuration.
func (c *Coordinator) snapshotConfig() core.Configuration {
	c.configMu.RLock()
	defer c.configMu.RUnlock()
	return c.config
}

// findTask locates a task by id in the current configuration snapshot.
func (c *Coordinator) findTask(taskID string) (core.Task, bool) {
	cfg := c.snapshotConfig()
	for _, t := range cfg.Tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return core.Task{}, false
}

// exclusionPatternsFor resolves a task's exclusion set ids into a flat
// pattern list against the current configuration snapshot.
func (c *Coordinator) exclusionPatternsFor(task core.Task) []string {
	cfg := c.snapshotConfig()
	byID := make(map[string]core.ExclusionSet, len(cfg.ExclusionSets))
	for _, set := range cfg.ExclusionSets {
		byID[set.ID] = set
	}
	var patterns []string
	for _, id := range task.ExclusionSetIDs {
		if set, ok := byID[id]; ok {
			patterns = append(patterns, set.Patterns...)
		}
	}
	return patterns
}

// SetConfiguration atomically replaces the task catalog, validates it,
// and runs watcher reconciliation (spec.md §4.8). On any validation
// error the change is abandoned and the previous configuration remains
// active. The configuration write lock is held for the entire
// reconciliation pass so that a subsequent SetConfiguration observes all
// of this one's effects (spec.md §5, design note "config reload
// atomicity").
func (c *Coordinator) SetConfiguration(ctx context.Context, cfg core.Configuration) error {
	if err := validation.TaskSet(cfg.Tasks); err != nil {
		return err
	}
	for _, set := range cfg.ExclusionSets {
		if err := validation.ExclusionPatterns(set.Patterns); err != nil {
			return errors.Wrapf(err, "exclusion set %q", set.ID)
		}
	}

	c.configMu.Lock()
	c.config = cfg
	isFirstSet := !c.bootstrapped
	c.bootstrapped = true
	defer c.configMu.Unlock()

	c.reconcileWatchers(ctx, cfg)

	if isFirstSet {
		for _, t := range cfg.Tasks {
			if t.Flags.WatchMode {
				c.enqueueWatchTriggered(ctx, t.ID)
			}
		}
	}

	return nil
}

// Close stops every managed watcher and cancels every in-flight sync.
// The coordinator must not be used after Close returns.
func (c *Coordinator) Close() {
	c.watchMu.Lock()
	for taskID, mw := range c.watchers {
		mw.cancel()
		mw.watcher.Close()
		delete(c.watchers, taskID)
	}
	c.watchMu.Unlock()

	c.cancelMu.Lock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancelMu.Unlock()
}
