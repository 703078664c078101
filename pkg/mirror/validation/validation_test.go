package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

func TestTaskID_Valid(t *testing.T) {
	require.NoError(t, TaskID("backup-task_01"))
}

func TestTaskID_Empty(t *testing.T) {
	require.Error(t, TaskID(""))
}

func TestTaskID_TooLong(t *testing.T) {
	id := make([]byte, 101)
	for i := range id {
		id[i] = 'a'
	}
	require.Error(t, TaskID(string(id)))
}

func TestTaskID_InvalidCharacter(t *testing.T) {
	require.Error(t, TaskID("bad id!"))
}

func TestPathArgument_RejectsNUL(t *testing.T) {
	require.Error(t, PathArgument("/tmp/a\x00b"))
}

func TestPathArgument_RejectsShellMetacharacters(t *testing.T) {
	require.Error(t, PathArgument("/tmp/a;rm -rf /"))
}

func TestPathArgument_AcceptsOrdinaryPath(t *testing.T) {
	require.NoError(t, PathArgument("/Volumes/Card/DCIM"))
}

func TestExclusionPatterns_EmptySetIsValid(t *testing.T) {
	require.NoError(t, ExclusionPatterns(nil))
}

func TestExclusionPatterns_TooMany(t *testing.T) {
	patterns := make([]string, 101)
	for i := range patterns {
		patterns[i] = "pattern"
	}
	require.Error(t, ExclusionPatterns(patterns))
}

func TestExclusionPatterns_RejectsTraversal(t *testing.T) {
	require.Error(t, ExclusionPatterns([]string{"../escape"}))
}

func TestExclusionPatterns_RejectsBadGlob(t *testing.T) {
	require.Error(t, ExclusionPatterns([]string{"["}))
}

func TestExclusionPatterns_AcceptsBareNameAndDoubleStar(t *testing.T) {
	require.NoError(t, ExclusionPatterns([]string{"node_modules", "**/*.tmp"}))
}

func TestNormalizePathKey_CollapsesAndLowercases(t *testing.T) {
	assert.Equal(t, "a/b/c", NormalizePathKey("/A/./b/../b/C/"))
}

func TestTaskSet_DuplicateID(t *testing.T) {
	tasks := []core.Task{
		{ID: "t1", Source: "/a", Target: "/b"},
		{ID: "t1", Source: "/c", Target: "/d"},
	}
	require.Error(t, TaskSet(tasks))
}

func TestTaskSet_SourceTargetSelfOverlap(t *testing.T) {
	tasks := []core.Task{
		{ID: "t1", Source: "/a", Target: "/a/sub"},
	}
	require.Error(t, TaskSet(tasks))
}

func TestTaskSet_OverlappingTargets(t *testing.T) {
	tasks := []core.Task{
		{ID: "t1", Source: "/src1", Target: "/dst"},
		{ID: "t2", Source: "/src2", Target: "/dst/nested"},
	}
	require.Error(t, TaskSet(tasks))
}

func TestTaskSet_WatchSourceOverlapsOtherTarget(t *testing.T) {
	tasks := []core.Task{
		{ID: "watcher", Source: "/shared", Target: "/dst1", Flags: core.TaskFlags{WatchMode: true}},
		{ID: "other", Source: "/src2", Target: "/shared/nested"},
	}
	require.Error(t, TaskSet(tasks))
}

func TestTaskSet_DisjointTasksAreValid(t *testing.T) {
	tasks := []core.Task{
		{ID: "t1", Source: "/src1", Target: "/dst1", Flags: core.TaskFlags{WatchMode: true}},
		{ID: "t2", Source: "/src2", Target: "/dst2"},
	}
	require.NoError(t, TaskSet(tasks))
}
