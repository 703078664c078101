package scan

import (
	"os"
	"time"
)

// platformCreateTime has no portable answer on Linux: the stat(2) family
// exposes ctime (last metadata change), not a birth time, on most
// filesystems in general use. Record metadata reports no creation time
// rather than misreporting ctime as creation time.
func platformCreateTime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
