//go:build !darwin && !linux && !windows

package scan

import (
	"os"
	"time"
)

// platformCreateTime has no implementation on platforms beyond Darwin,
// Linux, and Windows; it always reports no creation time.
func platformCreateTime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
