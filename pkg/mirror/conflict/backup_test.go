package conflict

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupName_IncludesStemTimestampSuffixAndExtension(t *testing.T) {
	modTime := time.Date(2026, time.March, 4, 13, 5, 9, 0, time.UTC)
	name := backupName("/Volumes/Card/IMG_0001.jpg", modTime, 1000, 1, 0)
	assert.Contains(t, name, "IMG_0001_20260304_130509_")
	assert.True(t, filepath.Ext(name) == ".jpg")
}

func TestSuffixFor_IsDeterministicForSameInputs(t *testing.T) {
	a := suffixFor(1000, 1, 0)
	b := suffixFor(1000, 1, 0)
	assert.Equal(t, a, b)
}

func TestSuffixFor_DiffersAcrossAttempts(t *testing.T) {
	a := suffixFor(1000, 1, 0)
	b := suffixFor(1000, 1, 1)
	assert.NotEqual(t, a, b)
}

func TestFindVacantBackupPath_ReturnsFirstAttemptWhenNoCollision(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "photo.jpg")
	modTime := time.Now()

	path, err := findVacantBackupPath(target, modTime, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestFindVacantBackupPath_SkipsExistingCandidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "photo.jpg")
	modTime := time.Now()

	firstCandidate := filepath.Join(dir, backupName(target, modTime, 1, 1, 0))
	require.NoError(t, os.WriteFile(firstCandidate, []byte("taken"), 0o644))

	path, err := findVacantBackupPath(target, modTime, 1, 1)
	require.NoError(t, err)
	assert.NotEqual(t, firstCandidate, path)
}
