// Package volume defines the capability interface the core consumes for
// platform volume enumeration (spec.md §6 "Volume enumerator capability").
// Mount table reading, removable-media classification, and UUID
// resolution are platform concerns outside this specification's scope;
// only the interface and a reusable classification heuristic live here.
package volume

import (
	"context"
	"strings"
)

// Info describes one mounted volume as reported by an Enumerator.
type Info struct {
	Name            string
	MountPoint      string
	TotalBytes      *uint64
	AvailableBytes  *uint64
	IsNetwork       bool
	IsRemovable     bool
	VolumeUUID      string
	DiskUUID        string
}

// Enumerator is the external capability the path resolver and runtime
// coordinator consume. A real implementation backs it with platform APIs
// (IOKit, diskutil, /proc/mounts, DeviceIoControl, ...); that
// implementation is out of scope here.
type Enumerator interface {
	// ListVolumes returns the currently mounted volumes.
	ListVolumes(ctx context.Context) ([]Info, error)
	// Unmount requests that the volume mounted at path be unmounted.
	Unmount(ctx context.Context, mountPoint string) error
}

// ClassifyRemovable applies the reference heuristics for distinguishing a
// genuinely removable volume from a backup or system volume that happens
// to appear in the mount table. It is a default, overridable policy a
// real Enumerator implementation may delegate to; it performs no I/O of
// its own. Grounded on original_source/src-tauri/src/system_integration.rs
// (see SPEC_FULL.md §4.16).
func ClassifyRemovable(info Info) bool {
	if info.IsNetwork {
		return false
	}
	name := info.Name
	for _, systemName := range nonRemovableVolumeNames {
		if strings.EqualFold(name, systemName) {
			return false
		}
	}
	if looksLikeBackupVolume(name) {
		return false
	}
	return true
}

// nonRemovableVolumeNames lists well-known system volume names that
// should never be classified as removable media, even if the mount table
// exposes them.
var nonRemovableVolumeNames = []string{
	"Macintosh HD",
	"Preboot",
	"Recovery",
	"Data",
	"System",
	"VM",
}

// looksLikeBackupVolume matches volume-name substrings commonly used by
// backup utilities, case-insensitively.
func looksLikeBackupVolume(name string) bool {
	lowered := strings.ToLower(name)
	for _, needle := range []string{"time machine", "timemachine", "backup"} {
		if strings.Contains(lowered, needle) {
			return true
		}
	}
	return false
}
