package conflict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

func TestClassifyPath_RecognizesEachFamily(t *testing.T) {
	assert.Equal(t, PreviewImage, ClassifyPath("a.PNG"))
	assert.Equal(t, PreviewVideo, ClassifyPath("a.mp4"))
	assert.Equal(t, PreviewText, ClassifyPath("a.md"))
	assert.Equal(t, PreviewDocument, ClassifyPath("a.pdf"))
	assert.Equal(t, PreviewOther, ClassifyPath("a.bin"))
}

func setupPreviewSession(t *testing.T, sourceContent, targetContent string) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source", "notes.txt")
	targetPath := filepath.Join(dir, "target", "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(sourcePath), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(targetPath), 0o755))
	require.NoError(t, os.WriteFile(sourcePath, []byte(sourceContent), 0o644))
	require.NoError(t, os.WriteFile(targetPath, []byte(targetContent), 0o644))

	store := New(NoopEvents{}, nil)
	session := store.Create("task1", "Task One", OriginManual, []core.ConflictCandidate{
		{RelativePath: "notes.txt", SourcePath: sourcePath, TargetPath: targetPath},
	})
	require.NotNil(t, session)
	return store, session.ID, session.Items[0].ID
}

func TestStore_PreviewReadsTextContentFromBothSides(t *testing.T) {
	store, sessionID, itemID := setupPreviewSession(t, "source text", "target text")

	result, err := store.Preview(sessionID, itemID, 0)
	require.NoError(t, err)
	assert.Equal(t, PreviewText, result.Kind)
	assert.Equal(t, "source text", result.Source.Text)
	assert.Equal(t, "target text", result.Target.Text)
}

func TestStore_PreviewClampsRequestedSizeToMinimum(t *testing.T) {
	store, sessionID, itemID := setupPreviewSession(t, "short", "short")
	result, err := store.Preview(sessionID, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, PreviewText, result.Kind)
}

func TestStore_PreviewUnknownSessionFails(t *testing.T) {
	store := New(NoopEvents{}, nil)
	_, err := store.Preview("missing", "item-000001", 0)
	require.Error(t, err)
}

func TestStore_PreviewUnknownItemFails(t *testing.T) {
	store, sessionID, _ := setupPreviewSession(t, "a", "b")
	_, err := store.Preview(sessionID, "item-999999", 0)
	require.Error(t, err)
}

func TestStore_PreviewNonTextKindSkipsReadingContent(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "photo.png")
	targetPath := filepath.Join(dir, "photo2.png")
	require.NoError(t, os.WriteFile(sourcePath, []byte{0x89, 0x50}, 0o644))
	require.NoError(t, os.WriteFile(targetPath, []byte{0x89, 0x50}, 0o644))

	store := New(NoopEvents{}, nil)
	session := store.Create("t", "T", OriginManual, []core.ConflictCandidate{
		{RelativePath: "photo.png", SourcePath: sourcePath, TargetPath: targetPath},
	})

	result, err := store.Preview(session.ID, session.Items[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, PreviewImage, result.Kind)
	assert.Empty(t, result.Source.Text)
}
