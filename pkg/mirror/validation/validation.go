// Package validation implements the four input checks the core performs
// before touching disk or mutating coordinator state: task id syntax,
// path argument syntax, exclusion pattern syntax, and whole-task-set
// consistency (overlap detection). Each failure is reported as a
// merrors.KindValidation error with a distinguishing message, matching
// the reference implementation's four-subkind taxonomy (spec.md §4.2).
package validation

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/merrors"
)

const (
	maxTaskIDLength   = 100
	maxPathBytes      = 4096
	maxPatterns       = 100
	maxPatternLength  = 255
)

// shellMetacharacters are rejected anywhere in a path argument.
const shellMetacharacters = "|&;$`\n"

// TaskID validates a task identifier: 1-100 characters, each one of
// [A-Za-z0-9_-].
func TaskID(id string) error {
	if id == "" {
		return fail("task id must not be empty")
	}
	if len(id) > maxTaskIDLength {
		return fail("task id too long: %d characters (max %d)", len(id), maxTaskIDLength)
	}
	for _, r := range id {
		if !isTaskIDRune(r) {
			return fail("task id contains invalid character %q", r)
		}
	}
	return nil
}

func isTaskIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}

// PathArgument validates a raw path string: length, NUL, and shell
// metacharacters. It does not resolve UUID tokens or touch disk.
func PathArgument(path string) error {
	if len(path) > maxPathBytes {
		return fail("path too long: %d bytes (max %d)", len(path), maxPathBytes)
	}
	if strings.ContainsRune(path, 0) {
		return fail("path contains a NUL byte")
	}
	if strings.ContainsAny(path, shellMetacharacters) {
		return fail("path contains shell metacharacters")
	}
	return nil
}

// ExclusionPatterns validates an exclusion set's pattern list: size,
// per-pattern length, traversal, control characters, and glob syntax.
// Empty patterns (after trimming) are silently skipped, matching the
// reference behavior.
func ExclusionPatterns(patterns []string) error {
	if len(patterns) > maxPatterns {
		return fail("too many exclusion patterns: %d (max %d)", len(patterns), maxPatterns)
	}
	for _, raw := range patterns {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > maxPatternLength {
			return fail("exclusion pattern too long: %d characters (max %d)", len(trimmed), maxPatternLength)
		}
		if strings.Contains(trimmed, "..") {
			return fail("exclusion pattern %q contains a path traversal sequence", trimmed)
		}
		if strings.ContainsAny(trimmed, "\x00\n\r") {
			return fail("exclusion pattern %q contains a control character", trimmed)
		}
		if _, err := doublestar.Match(trimmed, ""); err != nil {
			return fail("exclusion pattern %q is not a valid glob: %v", trimmed, err)
		}
	}
	return nil
}

// NormalizePathKey turns a path into the canonical comparison key used by
// overlap detection: collapse "." and ".." components, normalize
// separators to "/", strip a trailing slash, and lowercase. It is a pure
// string transform; it never touches the filesystem.
func NormalizePathKey(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	segments := strings.Split(p, "/")
	var out []string
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	key := strings.Join(out, "/")
	if strings.HasPrefix(p, "/") {
		key = "/" + key
	}
	return strings.ToLower(key)
}

// overlaps reports whether two normalized keys overlap: equal, or one is
// a prefix of the other followed by "/".
func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasPrefix(b, a+"/") {
		return true
	}
	if strings.HasPrefix(a, b+"/") {
		return true
	}
	return false
}

// TaskSet validates whole-catalog consistency: no task's source overlaps
// its own target, no two targets overlap, and no watch-mode task's
// source overlaps any other task's target (watch-loop prevention).
// Overlap comparison uses the literal configured path string (resolver
// fallback per spec.md §4.1) rather than resolving UUID tokens, since
// resolution may legitimately fail for an unmounted volume at
// configuration time.
func TaskSet(tasks []core.Task) error {
	type keyed struct {
		task   core.Task
		source string
		target string
	}
	keyedTasks := make([]keyed, 0, len(tasks))
	seenIDs := make(map[string]bool, len(tasks))

	for _, t := range tasks {
		if err := TaskID(t.ID); err != nil {
			return err
		}
		if seenIDs[t.ID] {
			return fail("duplicate task id %q", t.ID)
		}
		seenIDs[t.ID] = true

		if err := PathArgument(t.Source); err != nil {
			return errors.Wrapf(err, "task %q source", t.ID)
		}
		if err := PathArgument(t.Target); err != nil {
			return errors.Wrapf(err, "task %q target", t.ID)
		}

		srcKey := NormalizePathKey(t.Source)
		dstKey := NormalizePathKey(t.Target)
		if overlaps(srcKey, dstKey) {
			return fail("task %q source and target overlap", t.ID)
		}
		keyedTasks = append(keyedTasks, keyed{task: t, source: srcKey, target: dstKey})
	}

	for i := range keyedTasks {
		for j := range keyedTasks {
			if i == j {
				continue
			}
			if overlaps(keyedTasks[i].target, keyedTasks[j].target) {
				return fail("task %q and task %q have overlapping targets", keyedTasks[i].task.ID, keyedTasks[j].task.ID)
			}
			if keyedTasks[i].task.Flags.WatchMode && overlaps(keyedTasks[i].source, keyedTasks[j].target) {
				return fail("watch task %q source overlaps task %q target", keyedTasks[i].task.ID, keyedTasks[j].task.ID)
			}
		}
	}

	return nil
}

// fail builds a merrors.KindValidation error from a formatted message.
func fail(format string, args ...interface{}) error {
	return merrors.New(merrors.KindValidation, errors.Errorf(format, args...))
}
