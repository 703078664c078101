package scan

import (
	"os"
	"time"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

// recordFromInfo builds a core.FileRecord from a walked os.FileInfo,
// falling back to the Unix epoch when the filesystem does not report a
// modification time, and deferring to platformCreateTime for the
// optional creation timestamp.
func recordFromInfo(relativePath string, info os.FileInfo) core.FileRecord {
	modTime := info.ModTime()
	if modTime.IsZero() {
		modTime = time.Unix(0, 0)
	}

	createTime, hasCreateTime := platformCreateTime(info)

	return core.FileRecord{
		RelativePath:  relativePath,
		Size:          info.Size(),
		ModTime:       modTime,
		CreateTime:    createTime,
		HasCreateTime: hasCreateTime,
		IsFile:        !info.IsDir(),
	}
}
