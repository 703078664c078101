package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/activity"
	"github.com/foldmirror/foldmirror/pkg/mirror/conflict"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/pathresolve"
	"github.com/foldmirror/foldmirror/pkg/mirror/watch"
)

// reconcileWatchers brings the live watcher set in line with cfg's
// watch-mode tasks: watchers for tasks no longer present, or no longer
// in watch mode, are stopped; watchers for newly watch-mode tasks are
// started (spec.md §4.8). Held under watchMu for the whole pass so a
// concurrent reconcile can't interleave half-applied state.
func (c *Coordinator) reconcileWatchers(ctx context.Context, cfg core.Configuration) {
	desired := make(map[string]core.Task)
	for _, t := range cfg.Tasks {
		if t.Flags.WatchMode {
			desired[t.ID] = t
		}
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	for taskID, mw := range c.watchers {
		if _, stillDesired := desired[taskID]; !stillDesired {
			mw.cancel()
			mw.watcher.Close()
			delete(c.watchers, taskID)
			c.events.RuntimeWatchState(taskID, false, "", false)
		}
	}

	for taskID, task := range desired {
		if _, alreadyWatching := c.watchers[taskID]; alreadyWatching {
			continue
		}
		c.startWatcher(ctx, task)
	}
}

// startWatcher resolves task's source path, starts a recursive
// filesystem watcher on it, and spawns the debounce-and-enqueue
// goroutine. Failures are logged and leave the task unwatched rather
// than aborting the whole reconciliation pass. Must be called with
// watchMu held.
func (c *Coordinator) startWatcher(ctx context.Context, task core.Task) {
	source, err := pathresolve.Resolve(ctx, c.enumerator, task.Source)
	if err != nil {
		c.logger.Warnw("unable to resolve watch source, leaving task unwatched", logging.Fields{"task": task.ID, "error": err.Error()})
		c.events.RuntimeWatchState(task.ID, false, err.Error(), true)
		return
	}

	w, err := watch.Start(source, c.logger.Sublogger("watch").Sublogger(task.ID))
	if err != nil {
		c.logger.Warnw("unable to start watcher, leaving task unwatched", logging.Fields{"task": task.ID, "error": err.Error()})
		c.events.RuntimeWatchState(task.ID, false, err.Error(), true)
		return
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	// generation distinguishes this watcher instance from any future one
	// reconciliation starts for the same task id, so a debounce consumer
	// outlived by a restart does not enqueue against the replaced watcher.
	generation := uuid.NewString()
	c.watchers[task.ID] = &managedWatcher{source: source, generation: generation, watcher: w, cancel: cancel}

	synthetic := watch.Debounce(watchCtx, task.ID, w.Events())
	go c.consumeWatchEvents(watchCtx, task.ID, generation, synthetic)

	c.log.Append(activity.LevelInfo, activity.CategoryWatchStarted, "started watching "+task.Name, task.ID, true)
	c.events.RuntimeWatchState(task.ID, true, "", false)
}

// consumeWatchEvents drains one watcher's debounced event stream and
// enqueues a watch-triggered sync per synthetic event, so long as the
// watcher that produced it is still the one on record for the task
// (spec.md §4.7 feeding §4.8's queue).
func (c *Coordinator) consumeWatchEvents(ctx context.Context, taskID, generation string, in <-chan watch.SyntheticEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			c.watchMu.Lock()
			current, stillCurrent := c.watchers[taskID]
			c.watchMu.Unlock()
			if !stillCurrent || current == nil || current.generation != generation {
				return
			}

			c.events.WatchEvent(taskID, ev.Kind.String(), ev.Paths)
			c.enqueueWatchTriggered(context.Background(), taskID)
		}
	}
}

// enqueueWatchTriggered handles one watch-triggered sync request for
// taskID per spec.md §4.8's acquisition outcomes: Acquired runs
// immediately (bypassing the queue entirely), AlreadySyncing drops the
// request silently, and only CapacityReached joins the FIFO queue
// behind the dispatcher.
func (c *Coordinator) enqueueWatchTriggered(ctx context.Context, taskID string) {
	switch c.acquireSyncSlot(taskID) {
	case SlotAcquired:
		go func() {
			c.runSync(context.Background(), taskID, conflict.OriginWatch)
			c.releaseSyncSlot(taskID)
			if c.queueLen() > 0 {
				c.maybeStartDispatcher()
			}
		}()
	case SlotAlreadySyncing:
		return
	case SlotCapacityReached:
		c.queueMu.Lock()
		if c.queued[taskID] {
			c.queueMu.Unlock()
			return
		}
		c.queued[taskID] = true
		c.queue = append(c.queue, queueEntry{taskID: taskID, origin: conflict.OriginWatch})
		c.queueMu.Unlock()

		c.events.RuntimeSyncQueueState(taskID, true, "", false)
		c.maybeStartDispatcher()
	}
}
