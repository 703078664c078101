package conflict

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

type recordingEvents struct {
	queueChanges   [][]Summary
	openedSessions []string
	sessionUpdates []struct {
		id      string
		pending int
	}
}

func (r *recordingEvents) QueueChanged(sessions []Summary) {
	r.queueChanges = append(r.queueChanges, sessions)
}

func (r *recordingEvents) OpenSession(sessionID string) {
	r.openedSessions = append(r.openedSessions, sessionID)
}

func (r *recordingEvents) SessionUpdated(sessionID string, pendingCount int) {
	r.sessionUpdates = append(r.sessionUpdates, struct {
		id      string
		pending int
	}{sessionID, pendingCount})
}

func makeConflictFixture(t *testing.T) (sourcePath, targetPath string) {
	t.Helper()
	dir := t.TempDir()
	sourcePath = filepath.Join(dir, "source.txt")
	targetPath = filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source content"), 0o644))
	require.NoError(t, os.WriteFile(targetPath, []byte("target content"), 0o644))
	return sourcePath, targetPath
}

func TestStore_CreateWithEmptyCandidatesIsNoop(t *testing.T) {
	store := New(NoopEvents{}, nil)
	session := store.Create("t1", "Task", OriginManual, nil)
	assert.Nil(t, session)
}

func TestStore_CreateEmitsQueueChanged(t *testing.T) {
	events := &recordingEvents{}
	store := New(events, nil)
	sourcePath, targetPath := makeConflictFixture(t)

	store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	require.Len(t, events.queueChanges, 1)
	require.Len(t, events.queueChanges[0], 1)
	assert.Equal(t, 1, events.queueChanges[0][0].TotalCount)
}

func TestStore_SummariesSortedNewestFirst(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)

	first := store.Create("t1", "Task1", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})
	second := store.Create("t2", "Task2", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})
	// Force a strict ordering independent of wall-clock resolution.
	first.CreatedUnixMs = 100
	second.CreatedUnixMs = 200

	summaries := store.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
}

func TestStore_ResolveSkipMarksItemSkipped(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	outcome, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: session.Items[0].ID, Action: ActionSkip},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Resolved, 1)
	assert.Equal(t, StatusSkipped, outcome.Resolved[0].Status)
	assert.Equal(t, 0, outcome.PendingCount)
}

func TestStore_ResolveForceCopyOverwritesTarget(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	outcome, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: session.Items[0].ID, Action: ActionForceCopy},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Resolved, 1)
	assert.Equal(t, StatusForceCopied, outcome.Resolved[0].Status)

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "source content", string(contents))
}

func TestStore_ResolveRenameThenCopyPreservesOldTarget(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	outcome, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: session.Items[0].ID, Action: ActionRenameThenCopy},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Resolved, 1)
	assert.Equal(t, StatusSafeCopied, outcome.Resolved[0].Status)
	assert.True(t, outcome.Resolved[0].HasNote)

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "source content", string(contents))

	entries, err := os.ReadDir(filepath.Dir(targetPath))
	require.NoError(t, err)
	assert.Len(t, entries, 3) // source.txt, target.txt, and the backup
}

func TestStore_ResolveUnknownItemRecordsFailure(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	outcome, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: "item-999999", Action: ActionSkip},
	})
	require.NoError(t, err)
	assert.Empty(t, outcome.Resolved)
	require.Len(t, outcome.Failures, 1)
}

func TestStore_ResolveUnknownSessionFails(t *testing.T) {
	store := New(NoopEvents{}, nil)
	_, err := store.Resolve(context.Background(), "missing", []ResolveRequest{{ItemID: "item-000001", Action: ActionSkip}})
	require.Error(t, err)
}

func TestStore_ResolveNonPendingItemIsSilentlySkipped(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	_, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: session.Items[0].ID, Action: ActionSkip},
	})
	require.NoError(t, err)

	outcome, err := store.Resolve(context.Background(), session.ID, []ResolveRequest{
		{ItemID: session.Items[0].ID, Action: ActionForceCopy},
	})
	require.NoError(t, err)
	assert.Empty(t, outcome.Resolved)
	assert.Empty(t, outcome.Failures)
}

func TestStore_CloseWithPendingItemsWithoutForceIsNoop(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	result, err := store.Close(session.ID, false)
	require.NoError(t, err)
	assert.False(t, result.Closed)
	assert.True(t, result.HadPending)

	_, found := store.Get(session.ID)
	assert.True(t, found)
}

func TestStore_CloseForcedSkipsPendingItemsAndRemovesSession(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	result, err := store.Close(session.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.True(t, result.HadPending)
	assert.Equal(t, 1, result.SkippedNow)

	_, found := store.Get(session.ID)
	assert.False(t, found)
}

func TestStore_CloseUnknownSessionFails(t *testing.T) {
	store := New(NoopEvents{}, nil)
	_, err := store.Close("missing", true)
	require.Error(t, err)
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	store := New(NoopEvents{}, nil)
	sourcePath, targetPath := makeConflictFixture(t)
	session := store.Create("t1", "Task", OriginManual, []core.ConflictCandidate{
		{RelativePath: "a.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})

	clone, found := store.Get(session.ID)
	require.True(t, found)
	clone.Items[0].Status = StatusForceCopied

	original, _ := store.Get(session.ID)
	assert.Equal(t, StatusPending, original.Items[0].Status)
}
