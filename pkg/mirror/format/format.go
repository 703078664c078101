// Package format implements the numeric formatting rules consumed by the
// CLI and logs (spec.md §6): binary (powers of 1024) or decimal (powers
// of 1000) byte-size units, and thousands-separated integers.
package format

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

var binaryUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
var decimalUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// Bytes formats a byte count according to the given unit system.
func Bytes(n int64, system core.DataUnitSystem) string {
	base := float64(1000)
	units := decimalUnits
	if system == core.DataUnitBinary {
		base = 1024
		units = binaryUnits
	}

	value := float64(n)
	unitIndex := 0
	for value >= base && unitIndex < len(units)-1 {
		value /= base
		unitIndex++
	}

	if unitIndex == 0 {
		return fmt.Sprintf("%s %s", Comma(n), units[0])
	}
	return fmt.Sprintf("%.2f %s", value, units[unitIndex])
}

// Comma formats an integer with thousands separators inserted every
// three digits from the right, delegating to go-humanize.Comma.
func Comma(n int64) string {
	return humanize.Comma(n)
}
