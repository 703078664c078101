// Package diff implements the difference engine (spec.md §4.4): it
// compares a scanned source tree against an optional scanned target
// tree and emits a diff list plus a parallel conflict-candidate list. No
// disk is mutated; the copy pipeline (pkg/mirror/copy) acts on the
// result separately.
package diff

import (
	"context"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/orphan"
	"github.com/foldmirror/foldmirror/pkg/mirror/scan"
	"github.com/foldmirror/foldmirror/pkg/mirror/xxhash"
)

// Options controls one difference-engine pass.
type Options struct {
	// ChecksumMode enables the xxHash64 fallback comparison described
	// in spec.md §4.4 step 2b.
	ChecksumMode bool
	// ExcludePatterns is the expanded exclusion-set pattern list
	// applied to both the source and target scans.
	ExcludePatterns []string
	// IncludeOrphanCount populates DryRunResult.OrphansPresent with an
	// informational count of target-only entries (SPEC_FULL.md §4.16).
	// It never triggers a deletion.
	IncludeOrphanCount bool
	// Logger receives the symlinked-root warning described in spec.md §9
	// Open Question 2. May be nil.
	Logger *logging.Logger
}

// Outcome is the full result of a Compute pass: the dry-run-shaped
// aggregate plus the conflict candidates that were removed from the copy
// set. dry_run callers see only Result; conflict-aware sync callers see
// both (spec.md §4.4).
type Outcome struct {
	Result     core.DryRunResult
	Diffs      []core.Diff
	Conflicts  []core.ConflictCandidate
}

// Compute scans source (which must be a directory) and, if target is
// non-empty, target, then produces the diff and conflict-candidate lists.
// An empty target string is treated as an empty target set, matching
// spec.md §4.4's "absent target".
func Compute(ctx context.Context, source, target string, opts Options) (*Outcome, error) {
	sourceScan, err := scan.Scan(ctx, source, opts.ExcludePatterns, opts.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan source")
	}

	targetScan := &scan.Result{ByPath: map[string]core.FileRecord{}}
	if target != "" {
		if ts, statErr := scanTargetIfExists(ctx, target, opts.ExcludePatterns, opts.Logger); statErr != nil {
			return nil, statErr
		} else if ts != nil {
			targetScan = ts
		}
	}

	var diffs []core.Diff
	var conflicts []core.ConflictCandidate
	var bytesToCopy int64

	for relativePath, sourceRecord := range sourceScan.ByPath {
		if !sourceRecord.IsFile {
			continue
		}
		targetRecord, existsInTarget := targetScan.ByPath[relativePath]
		if !existsInTarget {
			diffs = append(diffs, core.Diff{
				RelativePath: relativePath,
				Kind:         core.DiffNew,
				SourceSize:   sourceRecord.Size,
			})
			bytesToCopy += sourceRecord.Size
			continue
		}
		if !targetRecord.IsFile {
			continue
		}

		if targetRecord.ModTime.After(sourceRecord.ModTime) {
			conflicts = append(conflicts, core.ConflictCandidate{
				RelativePath: relativePath,
				SourcePath:   joinPath(source, relativePath),
				TargetPath:   joinPath(target, relativePath),
				Source:       snapshotOf(sourceRecord),
				Target:       snapshotOf(targetRecord),
			})
			continue
		}

		needsCopy := sourceRecord.Size != targetRecord.Size || sourceRecord.ModTime.After(targetRecord.ModTime)
		if !needsCopy && opts.ChecksumMode {
			sourceHash, hashErr := xxhash.SumFile(ctx, joinPath(source, relativePath))
			if hashErr != nil {
				return nil, errors.Wrapf(hashErr, "unable to checksum source file %q", relativePath)
			}
			targetHash, hashErr := xxhash.SumFile(ctx, joinPath(target, relativePath))
			if hashErr != nil {
				return nil, errors.Wrapf(hashErr, "unable to checksum target file %q", relativePath)
			}
			needsCopy = sourceHash != targetHash
		}
		if needsCopy {
			diffs = append(diffs, core.Diff{
				RelativePath: relativePath,
				Kind:         core.DiffModified,
				SourceSize:   sourceRecord.Size,
				TargetSize:   targetRecord.Size,
			})
			bytesToCopy += sourceRecord.Size
		}
	}

	totalFiles := 0
	for _, r := range sourceScan.Records {
		if r.IsFile {
			totalFiles++
		}
	}

	filesModified := 0
	for _, d := range diffs {
		if d.Kind == core.DiffModified {
			filesModified++
		}
	}

	orphansPresent := -1
	if opts.IncludeOrphanCount {
		orphans, orphanErr := orphan.Find(ctx, source, target, opts.ExcludePatterns, opts.Logger)
		if orphanErr != nil {
			return nil, errors.Wrap(orphanErr, "unable to compute orphan count")
		}
		orphansPresent = len(orphans)
	}

	result := core.DryRunResult{
		Diffs:          diffs,
		TotalFiles:     totalFiles,
		FilesToCopy:    len(diffs),
		FilesModified:  filesModified,
		BytesToCopy:    bytesToCopy,
		OrphansPresent: orphansPresent,
	}

	return &Outcome{Result: result, Diffs: diffs, Conflicts: conflicts}, nil
}

func snapshotOf(r core.FileRecord) core.FileSnapshot {
	snap := core.FileSnapshot{
		Size:           r.Size,
		ModifiedUnixMs: r.ModTime.UnixMilli(),
	}
	if r.HasCreateTime {
		snap.CreatedUnixMs = r.CreateTime.UnixMilli()
		snap.HasCreatedField = true
	}
	return snap
}
