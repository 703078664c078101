package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounce_CoalescesBurstIntoSingleEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan RawEvent, 10)
	out := Debounce(ctx, "task1", in)

	in <- RawEvent{Kind: EventCreate, Path: "/a"}
	in <- RawEvent{Kind: EventModify, Path: "/b"}
	in <- RawEvent{Kind: EventModify, Path: "/a"}

	select {
	case synthetic := <-out:
		assert.Equal(t, "task1", synthetic.TaskID)
		assert.Equal(t, EventModify, synthetic.Kind)
		assert.ElementsMatch(t, []string{"/a", "/b"}, synthetic.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}
}

func TestDebounce_EmitsSeparateEventsAcrossQuietWindows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan RawEvent, 10)
	out := Debounce(ctx, "task1", in)

	in <- RawEvent{Kind: EventCreate, Path: "/a"}
	first := requireNextEvent(t, out)
	assert.ElementsMatch(t, []string{"/a"}, first.Paths)

	in <- RawEvent{Kind: EventRemove, Path: "/b"}
	second := requireNextEvent(t, out)
	assert.ElementsMatch(t, []string{"/b"}, second.Paths)
	assert.Equal(t, EventRemove, second.Kind)
}

func TestDebounce_CancellationClosesOutputChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan RawEvent)
	out := Debounce(ctx, "task1", in)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output channel to close")
	}
}

func requireNextEvent(t *testing.T, out <-chan SyntheticEvent) SyntheticEvent {
	t.Helper()
	select {
	case ev := <-out:
		return ev
	case <-time.After(2 * time.Second):
		require.Fail(t, "timed out waiting for debounced event")
		return SyntheticEvent{}
	}
}
