// Package cmd provides the shared CLI stderr-reporting helpers used by
// the foldmirror binary (spec.md §6 CLI surface).
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// Fatal prints an error message to standard error and terminates the
// process with exit code 1, per spec.md §6's frozen CLI exit codes.
func Fatal(err error) {
	Error(err)
	os.Exit(1)
}
