// Package orphan implements the orphan subsystem (spec.md §4.6):
// enumerating target-only entries and deleting a caller-supplied subset
// with bottom-up ordering and containment checks.
package orphan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/scan"
)

// Entry is one target-only entry discovered by Find.
type Entry struct {
	RelativePath string
	IsDir        bool
}

// Find enumerates every target entry whose relative path does not appear
// in source. Directory orphans and every descendant file orphan are both
// reported, since a directory orphan's descendants are never present in
// source either (they were pruned from the source scan or never
// existed there). An empty/missing target yields an empty result.
func Find(ctx context.Context, source, target string, excludePatterns []string, logger *logging.Logger) ([]Entry, error) {
	sourceScan, err := scan.Scan(ctx, source, excludePatterns, logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan source")
	}

	if _, statErr := os.Lstat(target); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil
		}
		return nil, errors.Wrap(statErr, "unable to stat target")
	}

	targetScan, err := scan.Scan(ctx, target, excludePatterns, logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan target")
	}

	var orphans []Entry
	for _, record := range targetScan.Records {
		if _, inSource := sourceScan.ByPath[record.RelativePath]; inSource {
			continue
		}
		orphans = append(orphans, Entry{
			RelativePath: record.RelativePath,
			IsDir:        !record.IsFile,
		})
	}

	return orphans, nil
}

// DeleteResult tallies the outcome of DeleteOrphans.
type DeleteResult struct {
	DeletedFilesCount int
	DeletedDirsCount  int
	SkippedCount      int
	Failures          []Failure
}

// DeletedCount is the sum of files and directories removed.
func (r DeleteResult) DeletedCount() int {
	return r.DeletedFilesCount + r.DeletedDirsCount
}

// Failure records a per-path deletion error.
type Failure struct {
	RelativePath string
	Message      string
}

// DeleteOrphans removes the given caller-supplied relative paths from
// target, following spec.md §4.6's five-step procedure: reject traversal,
// verify containment against the canonical target root, collapse
// ancestor/descendant duplicates, delete deepest-first, and tally
// per-path outcomes. Descendant counts for directories are a
// pre-deletion snapshot and may be approximate under concurrent
// modification; this is documented behavior, not a bug.
func DeleteOrphans(ctx context.Context, target string, relativePaths []string) (*DeleteResult, error) {
	canonicalTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		return nil, errors.Wrap(err, "unable to canonicalize target")
	}

	result := &DeleteResult{}

	type candidate struct {
		relative string
		absolute string
	}
	var accepted []candidate

	for _, rel := range relativePaths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		clean := filepath.ToSlash(rel)
		if filepath.IsAbs(rel) || strings.Contains(clean, "..") {
			result.SkippedCount++
			result.Failures = append(result.Failures, Failure{RelativePath: rel, Message: "rejected: absolute path or traversal sequence"})
			continue
		}

		absolute := filepath.Join(canonicalTarget, filepath.FromSlash(clean))
		resolvedAbsolute := absolute
		if existing, evalErr := filepath.EvalSymlinks(absolute); evalErr == nil {
			resolvedAbsolute = existing
		}
		if !withinRoot(resolvedAbsolute, canonicalTarget) {
			result.SkippedCount++
			result.Failures = append(result.Failures, Failure{RelativePath: rel, Message: "rejected: resolves outside target root"})
			continue
		}

		accepted = append(accepted, candidate{relative: clean, absolute: absolute})
	}

	// Sort shallow to deep, then prune any entry that is equal to or a
	// descendant of a previously kept entry, so deleting "stale/"
	// subsumes "stale/old.txt".
	sort.Slice(accepted, func(i, j int) bool {
		return depth(accepted[i].relative) < depth(accepted[j].relative)
	})

	var kept []candidate
	for _, c := range accepted {
		subsumed := false
		for _, k := range kept {
			if c.relative == k.relative || strings.HasPrefix(c.relative, k.relative+"/") {
				subsumed = true
				break
			}
		}
		if subsumed {
			result.SkippedCount++
			continue
		}
		kept = append(kept, c)
	}

	// Sort deep to shallow so nested kept entries (which cannot overlap
	// after the prune above, but may still share a parent) are removed
	// before their parents where applicable.
	sort.Slice(kept, func(i, j int) bool {
		return depth(kept[i].relative) > depth(kept[j].relative)
	})

	for _, c := range kept {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		info, statErr := os.Lstat(c.absolute)
		if statErr != nil {
			result.Failures = append(result.Failures, Failure{RelativePath: c.relative, Message: statErr.Error()})
			continue
		}

		if info.IsDir() {
			descendantFiles, descendantDirs := countDescendants(c.absolute)
			if removeErr := os.RemoveAll(c.absolute); removeErr != nil {
				result.Failures = append(result.Failures, Failure{RelativePath: c.relative, Message: removeErr.Error()})
				continue
			}
			result.DeletedFilesCount += descendantFiles
			result.DeletedDirsCount += descendantDirs + 1
		} else {
			if removeErr := os.Remove(c.absolute); removeErr != nil {
				result.Failures = append(result.Failures, Failure{RelativePath: c.relative, Message: removeErr.Error()})
				continue
			}
			result.DeletedFilesCount++
		}
	}

	return result, nil
}

// withinRoot reports whether resolved is root or a descendant of root.
func withinRoot(resolved, root string) bool {
	if resolved == root {
		return true
	}
	return strings.HasPrefix(resolved, root+string(filepath.Separator))
}

// depth counts path segments, used to order shallow-to-deep and back.
func depth(relative string) int {
	if relative == "" {
		return 0
	}
	return strings.Count(relative, "/") + 1
}

// countDescendants snapshots the file/directory counts beneath a
// directory before deletion, for the DeletedFilesCount/DeletedDirsCount
// tally. A concurrent modification during the subsequent RemoveAll may
// make this snapshot approximate; spec.md §4.6 documents this as
// expected behavior.
func countDescendants(absoluteDir string) (files int, dirs int) {
	_ = filepath.Walk(absoluteDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == absoluteDir {
			return nil
		}
		if info.IsDir() {
			dirs++
		} else {
			files++
		}
		return nil
	})
	return files, dirs
}
