package diff

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/scan"
)

// joinPath joins a root with a forward-slash relative path into a
// platform-native absolute path.
func joinPath(root, relativePath string) string {
	return filepath.Join(root, filepath.FromSlash(relativePath))
}

// scanTargetIfExists scans target unless it does not exist on disk, in
// which case it returns a nil result representing an empty target set
// (spec.md §4.4 "absent target").
func scanTargetIfExists(ctx context.Context, target string, excludePatterns []string, logger *logging.Logger) (*scan.Result, error) {
	if _, err := os.Lstat(target); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "unable to stat target")
	}
	result, err := scan.Scan(ctx, target, excludePatterns, logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan target")
	}
	return result, nil
}
