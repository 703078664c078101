package runtime

import (
	"context"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/mirror/conflict"
	"github.com/foldmirror/foldmirror/pkg/mirror/merrors"
)

// queueEntry is one pending FIFO queue admission request.
type queueEntry struct {
	taskID string
	origin conflict.Origin
}

// SlotResult is the outcome of a sync slot admission attempt (spec.md
// §4.8).
type SlotResult int

const (
	// SlotAcquired means the caller now owns the task's sync slot and
	// must release it with releaseSyncSlot when the run finishes.
	SlotAcquired SlotResult = iota
	// SlotAlreadySyncing means this exact task is currently running; no
	// second run of the same task is started. Manual Sync returns an
	// error, while watch-triggered and queued requests are dropped.
	SlotAlreadySyncing
	// SlotCapacityReached means the system is already running the
	// maximum concurrent syncs (spec.md §3); a different task holds both
	// slots.
	SlotCapacityReached
)

// acquireSyncSlot attempts to admit taskID for a sync run. Acquires
// syncMu only; callers that also need the queue must take queueMu
// afterward, per the documented lock order. Never blocks: capacity
// admission is a non-blocking try against capacitySem.
func (c *Coordinator) acquireSyncSlot(taskID string) SlotResult {
	c.syncMu.Lock()
	if c.syncing[taskID] {
		c.syncMu.Unlock()
		return SlotAlreadySyncing
	}
	c.syncMu.Unlock()

	if !c.capacitySem.TryAcquire(1) {
		return SlotCapacityReached
	}

	c.syncMu.Lock()
	c.syncing[taskID] = true
	c.syncMu.Unlock()
	return SlotAcquired
}

// releaseSyncSlot releases a previously acquired slot and wakes the
// dispatcher if it is blocked on capacity.
func (c *Coordinator) releaseSyncSlot(taskID string) {
	c.syncMu.Lock()
	delete(c.syncing, taskID)
	c.syncMu.Unlock()
	c.capacitySem.Release(1)
	c.slotReleased.Notify()
}

// maybeStartDispatcher starts the single dispatcher goroutine if one is
// not already running.
func (c *Coordinator) maybeStartDispatcher() {
	c.dispatchMu.Lock()
	if c.dispatcherAlive {
		c.dispatchMu.Unlock()
		return
	}
	c.dispatcherAlive = true
	c.dispatchMu.Unlock()

	go c.dispatchLoop()
}

// dispatchLoop drains the FIFO queue one task at a time, blocking on
// slotReleased when the head of the queue cannot be admitted because
// capacity is exhausted, and exiting once the queue is empty (spec.md
// §4.8's "single-instance dispatcher"). A head that is already syncing
// (its own watcher fired an immediate run after this entry was queued
// for capacity reasons) is dropped rather than blocked on, so it cannot
// head-of-line-block the tasks behind it.
func (c *Coordinator) dispatchLoop() {
	defer func() {
		c.dispatchMu.Lock()
		c.dispatcherAlive = false
		c.dispatchMu.Unlock()
	}()

	for {
		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.queueMu.Unlock()
			return
		}
		head := c.queue[0]
		c.queueMu.Unlock()

		// Captured before the admission attempt: a release landing between
		// this call and the blocking wait below still closes this exact
		// channel, so the wait can't miss it.
		released := c.slotReleased.Wait()

		switch c.acquireSyncSlot(head.taskID) {
		case SlotAcquired:
			c.dequeueHead(head.taskID)
			c.events.RuntimeSyncQueueState(head.taskID, false, "", false)

			go func(entry queueEntry) {
				c.runSync(context.Background(), entry.taskID, entry.origin)
				c.releaseSyncSlot(entry.taskID)
			}(head)
		case SlotAlreadySyncing:
			c.dequeueHead(head.taskID)
			c.events.RuntimeSyncQueueState(head.taskID, false, "", false)
		case SlotCapacityReached:
			<-released
		}
	}
}

// dequeueHead removes taskID from the front of the queue and its
// membership set. Must be called with taskID still at c.queue[0].
func (c *Coordinator) dequeueHead(taskID string) {
	c.queueMu.Lock()
	c.queue = c.queue[1:]
	delete(c.queued, taskID)
	c.queueMu.Unlock()
}

// Sync triggers an immediate manual sync of taskID. Per spec.md §9
// (Open Question: manual sync vs. the watch queue), manual syncs bypass
// the FIFO queue entirely: if a slot cannot be admitted immediately,
// Sync returns a CapacityReached/AlreadySyncing error rather than
// enqueuing, so a user-initiated sync never silently waits behind
// watch-triggered traffic.
func (c *Coordinator) Sync(ctx context.Context, taskID string) error {
	if _, ok := c.findTask(taskID); !ok {
		return errors.Errorf("no such task %q", taskID)
	}

	switch c.acquireSyncSlot(taskID) {
	case SlotAlreadySyncing:
		return merrors.New(merrors.KindRuntimeConflict, errors.Errorf("task %q is already syncing", taskID))
	case SlotCapacityReached:
		return merrors.New(merrors.KindRuntimeConflict, errors.New("maximum concurrent syncs already running"))
	}

	go func() {
		c.runSync(context.Background(), taskID, conflict.OriginManual)
		c.releaseSyncSlot(taskID)
		if c.queueLen() > 0 {
			c.maybeStartDispatcher()
		}
	}()
	return nil
}

func (c *Coordinator) queueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

// Cancel requests cancellation of taskID's in-flight sync run, if any.
// It reports whether a running sync was found to cancel.
func (c *Coordinator) Cancel(taskID string) bool {
	c.cancelMu.Lock()
	cancel, ok := c.cancels[taskID]
	c.cancelMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
