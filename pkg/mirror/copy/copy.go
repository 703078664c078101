// Package copy implements the copy pipeline (spec.md §4.5): a chunked,
// cancellable copy of a diff list with optional permission/mtime
// preservation and post-copy checksum verification.
package copy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/merrors"
	"github.com/foldmirror/foldmirror/pkg/mirror/xxhash"
)

// chunkSize is the transfer granularity named by spec.md §4.5.
const chunkSize = 64 * 1024

// Options controls per-run copy behavior.
type Options struct {
	PreservePermissions bool
	PreserveTimes       bool
	VerifyAfterCopy     bool
}

// Run copies every diff in order from sourceRoot to targetRoot. Diffs are
// processed sequentially; files_copied/bytes_copied in the returned
// SyncResult reflect only successfully completed files. Per-file errors
// are captured into the result and do not stop the run; a cooperative
// cancellation observed on ctx does stop the run, abandoning remaining
// diffs, and is surfaced as a merrors.KindCancelled error alongside the
// partial result.
func Run(ctx context.Context, sourceRoot, targetRoot string, diffs []core.Diff, opts Options, sink Sink) (core.SyncResult, error) {
	if sink == nil {
		sink = NoopSink
	}

	var result core.SyncResult
	var totalBytes int64
	for _, d := range diffs {
		totalBytes += d.SourceSize
	}

	var processedBytes int64
	for index, d := range diffs {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, merrors.New(merrors.KindCancelled, errors.New("sync run cancelled"))
		}

		sourcePath := filepath.Join(sourceRoot, filepath.FromSlash(d.RelativePath))
		targetPath := filepath.Join(targetRoot, filepath.FromSlash(d.RelativePath))

		var fileWritten int64
		fileProgress := func(chunkBytes int64) {
			fileWritten += chunkBytes
			sink.OnProgress(Progress{
				Phase:                  PhaseCopying,
				CurrentFile:            d.RelativePath,
				TotalFiles:             len(diffs),
				ProcessedFiles:         index,
				TotalBytes:             totalBytes,
				ProcessedBytes:         processedBytes + fileWritten,
				BytesCopiedCurrentFile: chunkBytes,
			})
		}

		written, copyErr := copyOneFile(ctx, sourcePath, targetPath, opts, fileProgress)
		if copyErr != nil {
			if isCancellation(copyErr) {
				result.Cancelled = true
				return result, merrors.New(merrors.KindCancelled, errors.New("sync run cancelled"))
			}
			result.Errors = append(result.Errors, errorFor(d.RelativePath, copyErr))
			continue
		}

		result.FilesCopied++
		result.BytesCopied += written
		processedBytes += written

		sink.OnProgress(Progress{
			Phase:          PhaseCopying,
			CurrentFile:    d.RelativePath,
			TotalFiles:     len(diffs),
			ProcessedFiles: index + 1,
			TotalBytes:     totalBytes,
			ProcessedBytes: processedBytes,
		})
	}

	sink.OnProgress(Progress{
		Phase:          PhaseDone,
		TotalFiles:     len(diffs),
		ProcessedFiles: len(diffs),
		TotalBytes:     totalBytes,
		ProcessedBytes: processedBytes,
	})

	return result, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func errorFor(relativePath string, err error) core.SyncError {
	kind := core.ErrorCopyFailed
	var merr *merrors.Error
	if errors.As(err, &merr) && merr.Kind == merrors.KindVerificationFailed {
		kind = core.ErrorVerificationFailed
	}
	return core.SyncError{Path: relativePath, Message: err.Error(), Kind: kind}
}

// CopyFile performs a single whole-file copy with the same
// parent-directory creation, permission/mtime preservation, and
// verification semantics as the pipeline's per-diff copy step. It is
// exported for reuse by the conflict review store's ForceCopy and
// RenameThenCopy resolutions (spec.md §4.9), which perform the identical
// copy outside of a full diff-driven run.
func CopyFile(ctx context.Context, sourcePath, targetPath string, opts Options) (int64, error) {
	return copyOneFile(ctx, sourcePath, targetPath, opts, nil)
}

// copyOneFile performs steps 1-6 of spec.md §4.5 for a single file,
// returning the number of bytes written.
func copyOneFile(ctx context.Context, sourcePath, targetPath string, opts Options, progress func(int64)) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return 0, errors.Wrap(err, "unable to create target parent directory")
	}

	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return 0, errors.Wrap(err, "unable to stat source file")
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return 0, errors.Wrap(err, "unable to open source file")
	}
	defer sourceFile.Close()

	targetFile, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return 0, errors.Wrap(err, "unable to open target file")
	}

	written, copyErr := chunkedCopy(ctx, targetFile, sourceFile, progress)
	closeErr := targetFile.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, errors.Wrap(closeErr, "unable to finalize target file")
	}

	if opts.PreservePermissions {
		if err := os.Chmod(targetPath, sourceInfo.Mode().Perm()); err != nil {
			return written, errors.Wrap(err, "unable to preserve permissions")
		}
	}
	if opts.PreserveTimes {
		now := time.Now()
		if err := os.Chtimes(targetPath, now, sourceInfo.ModTime()); err != nil {
			return written, errors.Wrap(err, "unable to preserve modification time")
		}
	}

	if opts.VerifyAfterCopy {
		sourceHash, hashErr := xxhash.SumFile(ctx, sourcePath)
		if hashErr != nil {
			return written, errors.Wrap(hashErr, "unable to checksum source for verification")
		}
		targetHash, hashErr := xxhash.SumFile(ctx, targetPath)
		if hashErr != nil {
			return written, errors.Wrap(hashErr, "unable to checksum target for verification")
		}
		if sourceHash != targetHash {
			os.Remove(targetPath)
			return written, merrors.New(merrors.KindVerificationFailed, errors.New("checksum mismatch after copy"))
		}
	}

	return written, nil
}

// chunkedCopy copies src into dst in chunkSize chunks, invoking progress
// with the just-written chunk's byte count after every chunk (spec.md
// §4.5 step 3) and checking ctx between chunks. A file exactly at the
// chunk boundary completes in exactly two read iterations: the final
// read returns zero bytes and io.EOF (spec.md §8 boundary behavior).
func chunkedCopy(ctx context.Context, dst io.Writer, src io.Reader, progress func(int64)) (int64, error) {
	buffer := make([]byte, chunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return written, errors.Wrap(writeErr, "unable to write target chunk")
			}
			written += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, errors.Wrap(readErr, "unable to read source chunk")
		}
	}
}
