package conflict

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// backupSuffixAlphabet is the character set for the 3-character
// pseudo-random suffix (spec.md §4.9).
const backupSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxBackupAttempts = 20

// suffixFor derives the 3-character suffix for one backup-name attempt,
// seeded deterministically from (epoch_ms + seq + attempt) as spec.md
// §4.9 requires.
func suffixFor(epochMs int64, seq int64, attempt int) string {
	seed := epochMs + seq + int64(attempt)
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, 3)
	for i := range buf {
		buf[i] = backupSuffixAlphabet[r.Intn(len(backupSuffixAlphabet))]
	}
	return string(buf)
}

// backupName builds the candidate backup filename for one attempt:
// "<stem>_<YYYYMMDD_HHMMSS>_<suffix><ext>", where the timestamp is
// derived from the source file's modification time.
func backupName(targetPath string, sourceModTime time.Time, epochMs int64, seq int64, attempt int) string {
	base := filepath.Base(targetPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	timestamp := sourceModTime.Format("20060102_150405")
	suffix := suffixFor(epochMs, seq, attempt)
	return fmt.Sprintf("%s_%s_%s%s", stem, timestamp, suffix, ext)
}

// findVacantBackupPath retries backupName up to maxBackupAttempts times
// until it finds a path that does not currently exist, returning the
// full path alongside it.
func findVacantBackupPath(targetPath string, sourceModTime time.Time, epochMs int64, seq int64) (string, error) {
	dir := filepath.Dir(targetPath)
	for attempt := 0; attempt < maxBackupAttempts; attempt++ {
		candidate := filepath.Join(dir, backupName(targetPath, sourceModTime, epochMs, seq, attempt))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.Errorf("unable to find a vacant backup name after %d attempts", maxBackupAttempts)
}
