package scan

import (
	"os"
	"syscall"
	"time"
)

// platformCreateTime extracts the file's creation time on Windows via
// the Win32FileAttributeData embedded in os.FileInfo.Sys().
func platformCreateTime(info os.FileInfo) (time.Time, bool) {
	stat, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, stat.CreationTime.Nanoseconds()), true
}
