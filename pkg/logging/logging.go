package logging

import (
	"log"
	"os"
	"sync/atomic"
)

func init() {
	// Set the global logger to use standard output.
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)
}

// currentLevel is the process-wide logging threshold. It is stored as a
// uint32 so it can be read and swapped without a lock.
var currentLevel uint32 = uint32(LevelInfo)

// SetLevel changes the process-wide logging threshold. It is safe for
// concurrent use.
func SetLevel(level Level) {
	atomic.StoreUint32(&currentLevel, uint32(level))
}

// enabled reports whether the given level should currently be emitted.
func enabled(level Level) bool {
	return level <= Level(atomic.LoadUint32(&currentLevel))
}
