package watch

import (
	"context"
	"time"
)

// debounceWindow is the trailing-edge quiet period named by spec.md
// §4.7 and §5.
const debounceWindow = 500 * time.Millisecond

// Debounce drains raw events from in and emits one coalesced
// SyntheticEvent per trailing-edge debounce window onto the returned
// channel: it waits for a first event, then accumulates paths and kinds
// while new events arrive within the window of the last one, and emits
// on 500ms of quiet. Cancelling ctx exits promptly and discards any
// pending batch. The returned channel is closed when the worker exits.
func Debounce(ctx context.Context, taskID string, in <-chan RawEvent) <-chan SyntheticEvent {
	out := make(chan SyntheticEvent)

	go func() {
		defer close(out)

		for {
			var first RawEvent
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				first = ev
			}

			seenPaths := map[string]struct{}{first.Path: {}}
			lastKind := first.Kind

			timer := time.NewTimer(debounceWindow)
		accumulate:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case ev, ok := <-in:
					if !ok {
						timer.Stop()
						break accumulate
					}
					seenPaths[ev.Path] = struct{}{}
					lastKind = ev.Kind
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(debounceWindow)
				case <-timer.C:
					break accumulate
				}
			}

			paths := make([]string, 0, len(seenPaths))
			for p := range seenPaths {
				paths = append(paths, p)
			}

			select {
			case out <- SyntheticEvent{TaskID: taskID, Kind: lastKind, Paths: paths}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
