package watch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
)

// queueCapacity is the bounded channel size named by spec.md §4.7. Events
// beyond this capacity are dropped with try-send semantics: documented
// backpressure, not failure.
const queueCapacity = 100

// Watcher recursively watches a single directory tree, forwarding
// filtered {Create, Modify, Remove} events into a bounded output
// channel. It owns one fsnotify.Watcher and a watch entry per live
// subdirectory; newly created subdirectories are added as they appear so
// the watch stays recursive without native OS support for that mode.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	events   chan RawEvent
	logger   *logging.Logger
	doneOnce sync.Once
	done     chan struct{}
}

// Start begins watching root recursively. The returned Watcher must be
// stopped with Close once no longer needed.
func Start(root string, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create filesystem watcher")
	}

	w := &Watcher{
		root:   root,
		fsw:    fsw,
		events: make(chan RawEvent, queueCapacity),
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := w.addTreeRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.pump()

	return w, nil
}

// Events returns the channel of filtered raw events. The channel is
// closed when the Watcher is closed.
func (w *Watcher) Events() <-chan RawEvent {
	return w.events
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	w.doneOnce.Do(func() {
		close(w.done)
	})
	return w.fsw.Close()
}

// addTreeRecursive adds a native watch for root and every directory
// beneath it.
func (w *Watcher) addTreeRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are skipped rather than aborting the
			// whole watch registration.
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				w.logger.Warn(errors.Wrapf(addErr, "unable to watch directory %q", path))
			}
		}
		return nil
	})
}

// pump drains the underlying fsnotify watcher, filters events to
// {Create, Modify, Remove}, follows newly created directories, and
// forwards to w.events with try-send semantics.
func (w *Watcher) pump() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(errors.Wrap(err, "filesystem watch error"))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	kind, ok := filterOp(ev.Op)
	if !ok {
		return
	}

	if kind == EventCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if addErr := w.addTreeRecursive(ev.Name); addErr != nil {
				w.logger.Warn(errors.Wrapf(addErr, "unable to extend watch into %q", ev.Name))
			}
		}
	}

	select {
	case w.events <- RawEvent{Kind: kind, Path: ev.Name}:
	default:
		// Bounded queue overflow: drop the event. Documented
		// backpressure per spec.md §4.7.
		w.logger.Warnw("watch event queue overflow, dropping event", logging.Fields{"path": ev.Name})
	}
}

// filterOp maps an fsnotify operation to the filtered taxonomy, or
// reports false for operations outside {Create, Modify, Remove} (e.g.
// Chmod).
func filterOp(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreate, true
	case op&fsnotify.Write != 0:
		return EventModify, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return EventRemove, true
	default:
		return EventOther, false
	}
}
