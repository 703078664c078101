package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRemovable_NetworkVolumeIsNotRemovable(t *testing.T) {
	assert.False(t, ClassifyRemovable(Info{Name: "Shared", IsNetwork: true}))
}

func TestClassifyRemovable_KnownSystemVolumeIsNotRemovable(t *testing.T) {
	assert.False(t, ClassifyRemovable(Info{Name: "Macintosh HD"}))
}

func TestClassifyRemovable_SystemVolumeMatchIsCaseInsensitive(t *testing.T) {
	assert.False(t, ClassifyRemovable(Info{Name: "macintosh hd"}))
}

func TestClassifyRemovable_BackupVolumeNameIsNotRemovable(t *testing.T) {
	assert.False(t, ClassifyRemovable(Info{Name: "My Time Machine Backup"}))
}

func TestClassifyRemovable_OrdinaryThumbDriveIsRemovable(t *testing.T) {
	assert.True(t, ClassifyRemovable(Info{Name: "SANDISK32"}))
}
