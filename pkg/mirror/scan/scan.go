// Package scan implements the directory scanner (spec.md §4.3): a
// blocking filesystem walk, run on the caller's goroutine, that yields a
// FileRecord per descendant of a root directory, honoring an
// anchored+descendant glob exclusion set.
package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

// Result is a completed scan: every descendant record, keyed by relative
// path for O(1) diff lookups, plus the same records in a stable slice for
// callers that need deterministic iteration (tests, orphan reporting).
type Result struct {
	ByPath  map[string]core.FileRecord
	Records []core.FileRecord
}

// buildExclusionSet expands each raw pattern into the glob set used to
// prune the walk: a pattern is added as-is, and additionally as
// "**/<pattern>" when it doesn't already begin with "/" or "**/", so bare
// names like ".venv" match at any depth (spec.md §4.3).
func buildExclusionSet(patterns []string) []string {
	var expanded []string
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		expanded = append(expanded, p)
		if !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "**/") {
			expanded = append(expanded, "**/"+p)
		}
	}
	return expanded
}

// matchesAny reports whether relativePath (forward-slash separated)
// matches any of the expanded exclusion patterns.
func matchesAny(patterns []string, relativePath string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relativePath); ok {
			return true
		}
	}
	return false
}

// Scan walks root and returns a record for every descendant except root
// itself. A symlinked root is followed via canonicalization, with a
// warning logged through logger (which may be nil), per spec.md §9 Open
// Question 2; entries encountered elsewhere in the walk are recorded by
// their own Lstat metadata and are not followed. Directories matching an
// exclusion pattern are pruned, which also excludes every file beneath
// them. Entries whose metadata cannot be read are silently skipped. The
// walk runs synchronously on the calling goroutine; callers on an async
// runtime should dispatch it to a blocking worker pool (see
// runtime.Coordinator, which runs each sync, and so each scan, in its own
// goroutine rather than on its dispatch loop).
func Scan(ctx context.Context, root string, excludePatterns []string, logger *logging.Logger) (*Result, error) {
	canonicalRoot, evalErr := filepath.EvalSymlinks(root)
	if evalErr != nil {
		return nil, errors.Wrap(evalErr, "unable to canonicalize scan root")
	}
	if canonicalRoot != root {
		logger.Warnw("scan root is a symlink, following it", logging.Fields{"root": root, "resolved": canonicalRoot})
	}

	info, err := os.Lstat(canonicalRoot)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat scan root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("scan root %q is not a directory", root)
	}

	expanded := buildExclusionSet(excludePatterns)
	result := &Result{ByPath: make(map[string]core.FileRecord)}

	walkErr := filepath.Walk(canonicalRoot, func(currentPath string, walkInfo os.FileInfo, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			// Metadata unreadable for this entry: skip it silently,
			// matching spec.md §4.3.
			if walkInfo != nil && walkInfo.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if currentPath == canonicalRoot {
			return nil
		}

		relativePath, relErr := filepath.Rel(canonicalRoot, currentPath)
		if relErr != nil {
			return nil
		}
		relativePath = filepath.ToSlash(relativePath)

		if matchesAny(expanded, relativePath) {
			if walkInfo.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		record := recordFromInfo(relativePath, walkInfo)
		result.ByPath[relativePath] = record
		result.Records = append(result.Records, record)
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrap(walkErr, "directory walk failed")
	}

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].RelativePath < result.Records[j].RelativePath
	})

	return result, nil
}
