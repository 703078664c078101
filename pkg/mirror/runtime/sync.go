package runtime

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/activity"
	"github.com/foldmirror/foldmirror/pkg/mirror/conflict"
	"github.com/foldmirror/foldmirror/pkg/mirror/copy"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/diff"
	"github.com/foldmirror/foldmirror/pkg/mirror/pathresolve"
)

const (
	// progressThrottleInterval is the minimum spacing between delivered
	// sync-progress UI events, always overridden for the final file
	// (spec.md §4.8).
	progressThrottleInterval = 100 * time.Millisecond
	// logBatchMaxEntries and logBatchMaxDelay bound how long a batch of
	// per-file completion log entries accumulates before being flushed
	// to both the activity ring and the UI events sink.
	logBatchMaxEntries = 50
	logBatchMaxDelay   = 200 * time.Millisecond
)

// runSync executes the ten-step sync run wrapper for a single
// admission-approved task invocation (spec.md §4.8). The caller is
// responsible for slot acquisition/release; runSync assumes it already
// holds taskID's slot for its whole duration.
func (c *Coordinator) runSync(parentCtx context.Context, taskID string, origin conflict.Origin) {
	task, ok := c.findTask(taskID)
	if !ok {
		c.logger.Warnw("sync run requested for unknown task, aborting", logging.Fields{"task": taskID})
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	c.cancelMu.Lock()
	c.cancels[taskID] = cancel
	c.cancelMu.Unlock()
	defer func() {
		c.cancelMu.Lock()
		delete(c.cancels, taskID)
		c.cancelMu.Unlock()
		cancel()
	}()

	c.events.RuntimeSyncState(taskID, true, "", false)
	c.log.Append(activity.LevelInfo, activity.CategorySyncStarted, "sync started for "+task.Name, taskID, true)

	source, err := pathresolve.Resolve(ctx, c.enumerator, task.Source)
	if err != nil {
		c.finishWithError(taskID, task.Name, err)
		return
	}
	target, err := pathresolve.Resolve(ctx, c.enumerator, task.Target)
	if err != nil {
		c.finishWithError(taskID, task.Name, err)
		return
	}

	exclusions := c.exclusionPatternsFor(task)
	outcome, err := diff.Compute(ctx, source, target, diff.Options{
		ChecksumMode:    task.Flags.ChecksumMode,
		ExcludePatterns: exclusions,
		Logger:          c.logger,
	})
	if err != nil {
		c.finishWithError(taskID, task.Name, err)
		return
	}

	batcher := newLogBatcher(c, taskID)
	progressLimiter := newProgressLimiter(c, taskID, len(outcome.Diffs))

	copyOpts := copy.Options{
		PreservePermissions: true,
		PreserveTimes:       true,
		VerifyAfterCopy:     task.Flags.VerifyAfterCopy,
	}
	result, err := copy.Run(ctx, source, target, outcome.Diffs, copyOpts, copy.SinkFunc(func(p copy.Progress) {
		progressLimiter.observe(p)
		if p.Phase == copy.PhaseCopying && p.ProcessedFiles > 0 && p.BytesCopiedCurrentFile == 0 {
			batcher.add(task.Name, p.CurrentFile)
		}
	}))
	batcher.flush()

	if err != nil && !result.Cancelled {
		c.finishWithError(taskID, task.Name, err)
		return
	}

	for _, syncErr := range result.Errors {
		c.log.Append(activity.LevelError, activity.CategorySyncError, task.Name+": "+syncErr.Path+": "+syncErr.Message, taskID, true)
	}

	var session *conflict.Session
	if len(outcome.Conflicts) > 0 {
		session = c.conflicts.Create(taskID, task.Name, origin, outcome.Conflicts)
		c.log.Append(activity.LevelWarning, activity.CategorySyncError, "sync produced conflicts requiring review for "+task.Name, taskID, true)
	}

	if result.Cancelled {
		c.log.Append(activity.LevelWarning, activity.CategorySyncError, "sync cancelled for "+task.Name, taskID, true)
	} else {
		c.log.Append(activity.LevelSuccess, activity.CategorySyncCompleted, "sync completed for "+task.Name, taskID, true)
	}

	c.maybeAutoUnmount(ctx, task, origin, session)

	c.events.RuntimeSyncState(taskID, false, "", false)
	if c.queueLen() > 0 {
		c.maybeStartDispatcher()
	}
}

func (c *Coordinator) finishWithError(taskID, taskName string, err error) {
	c.log.Append(activity.LevelError, activity.CategorySyncError, taskName+": "+err.Error(), taskID, true)
	c.events.RuntimeSyncState(taskID, false, err.Error(), true)
}

// maybeAutoUnmount requests an unmount of the task's source volume when
// the run was watch-triggered, auto-unmount is enabled, and no
// conflicts are left pending review (spec.md §4.8's conditional
// auto-unmount step). Manual runs never trigger it: a user watching the
// sync they just started would not expect their media to disappear.
func (c *Coordinator) maybeAutoUnmount(ctx context.Context, task core.Task, origin conflict.Origin, session *conflict.Session) {
	if origin != conflict.OriginWatch || !task.Flags.AutoUnmount {
		return
	}
	if session != nil && session.PendingCount() > 0 {
		return
	}

	source, err := pathresolve.Resolve(ctx, c.enumerator, task.Source)
	if err != nil {
		return
	}
	volumes, err := c.enumerator.ListVolumes(ctx)
	if err != nil {
		c.logger.Warn(errors.Wrap(err, "unable to list volumes for auto-unmount"))
		return
	}
	for _, v := range volumes {
		if v.MountPoint == source || (v.MountPoint != "" && len(source) > len(v.MountPoint) && source[:len(v.MountPoint)] == v.MountPoint) {
			if unmountErr := c.enumerator.Unmount(ctx, v.MountPoint); unmountErr != nil {
				c.logger.Warn(errors.Wrapf(unmountErr, "auto-unmount failed for %q", v.MountPoint))
			} else {
				c.log.Append(activity.LevelInfo, activity.CategoryVolumeUnmounted, "auto-unmounted "+v.MountPoint, task.ID, true)
			}
			return
		}
	}
}

// logBatcher coalesces per-file completion log entries, flushing to the
// activity ring and events sink at logBatchMaxEntries or
// logBatchMaxDelay, whichever comes first.
type logBatcher struct {
	c         *Coordinator
	taskID    string
	pending   []string
	lastFlush time.Time
}

func newLogBatcher(c *Coordinator, taskID string) *logBatcher {
	return &logBatcher{c: c, taskID: taskID, lastFlush: time.Now()}
}

func (b *logBatcher) add(taskName, relativePath string) {
	b.pending = append(b.pending, taskName+": copied "+relativePath)
	if len(b.pending) >= logBatchMaxEntries || time.Since(b.lastFlush) >= logBatchMaxDelay {
		b.flush()
	}
}

func (b *logBatcher) flush() {
	if len(b.pending) == 0 {
		return
	}
	items := make([]struct {
		Level     activity.Level
		Category  activity.Category
		Message   string
		TaskID    string
		HasTaskID bool
	}, 0, len(b.pending))
	for _, msg := range b.pending {
		items = append(items, struct {
			Level     activity.Level
			Category  activity.Category
			Message   string
			TaskID    string
			HasTaskID bool
		}{Level: activity.LevelInfo, Category: activity.CategoryFileCopied, Message: msg, TaskID: b.taskID, HasTaskID: true})
	}
	b.c.log.AppendBatch(items)
	b.pending = nil
	b.lastFlush = time.Now()
}

// progressLimiter throttles sync-progress UI events to at most one per
// progressThrottleInterval, always forwarding the final file's event
// regardless of timing (spec.md §4.8).
type progressLimiter struct {
	c          *Coordinator
	taskID     string
	totalFiles int
	lastSent   time.Time
}

func newProgressLimiter(c *Coordinator, taskID string, totalFiles int) *progressLimiter {
	return &progressLimiter{c: c, taskID: taskID, totalFiles: totalFiles}
}

func (p *progressLimiter) observe(progress copy.Progress) {
	isFinal := progress.Phase == copy.PhaseDone || progress.ProcessedFiles >= p.totalFiles
	if !isFinal && time.Since(p.lastSent) < progressThrottleInterval {
		return
	}
	p.lastSent = time.Now()
	p.c.events.SyncProgress(p.taskID, progress.CurrentFile, progress.ProcessedBytes, progress.TotalBytes)
}
