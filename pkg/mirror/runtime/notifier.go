package runtime

import "sync"

// notifier is a broadcast-once-per-generation signal: each call to
// Notify wakes every goroutine currently blocked in Wait, without
// requiring them to have registered beforehand. It backs the
// slot-released signal the dispatcher blocks on while the system is at
// its concurrency cap (spec.md §4.8).
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

// Wait returns a channel that is closed the next time Notify is called.
func (n *notifier) Wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Notify wakes every current waiter and establishes a fresh generation
// for subsequent Wait calls.
func (n *notifier) Notify() {
	n.mu.Lock()
	old := n.ch
	n.ch = make(chan struct{})
	n.mu.Unlock()
	close(old)
}
