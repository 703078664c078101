// Package xxhash computes the non-cryptographic 64-bit digests the
// difference engine and copy pipeline use for checksum-mode equality
// comparison and post-copy verification (spec.md §4.4, §4.5). It is a
// thin wrapper over github.com/cespare/xxhash/v2 that streams a file in
// fixed-size chunks rather than reading it fully into memory.
package xxhash

import (
	"context"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// chunkSize matches the copy pipeline's transfer chunk size so that
// checksum passes and copy passes exercise the same I/O granularity.
const chunkSize = 64 * 1024

// SumFile computes the xxHash64 digest of the file at path, checking ctx
// for cancellation between chunks.
func SumFile(ctx context.Context, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "unable to open file for checksum")
	}
	defer f.Close()

	hasher := xxhash.New()
	buffer := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		n, readErr := f.Read(buffer)
		if n > 0 {
			if _, err := hasher.Write(buffer[:n]); err != nil {
				return 0, errors.Wrap(err, "unable to update checksum")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, errors.Wrap(readErr, "unable to read file for checksum")
		}
	}

	return hasher.Sum64(), nil
}
