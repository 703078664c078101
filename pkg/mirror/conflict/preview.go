package conflict

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// PreviewKind classifies a file by extension for preview purposes.
type PreviewKind int

const (
	PreviewImage PreviewKind = iota
	PreviewVideo
	PreviewText
	PreviewDocument
	PreviewOther
)

const (
	defaultPreviewBytes = 64 * 1024
	minPreviewBytes     = 1024
	maxPreviewBytes     = 512 * 1024
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".webp": true, ".heic": true, ".tiff": true, ".svg": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true,
	".m4v": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".csv": true, ".log": true, ".go": true, ".rs": true, ".py": true,
	".js": true, ".ts": true, ".toml": true, ".ini": true, ".xml": true,
	".html": true, ".css": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true,
}

// ClassifyPath determines a PreviewKind from a path's extension.
func ClassifyPath(path string) PreviewKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return PreviewImage
	case videoExtensions[ext]:
		return PreviewVideo
	case textExtensions[ext]:
		return PreviewText
	case documentExtensions[ext]:
		return PreviewDocument
	default:
		return PreviewOther
	}
}

// SidePreview is one side's (source or target) preview content.
type SidePreview struct {
	// Text is the UTF-8 decoded content prefix, populated only for
	// PreviewKind == PreviewText.
	Text      string
	Truncated bool
}

// PreviewResult is the outcome of previewing one conflict item.
type PreviewResult struct {
	Kind   PreviewKind
	Source SidePreview
	Target SidePreview
}

// Preview classifies the conflict item's path by extension and, for text
// files, reads up to maxBytes from each side (clamped to
// [1KiB, 512KiB], defaulting to 64KiB when maxBytes <= 0). Non-UTF-8
// content downgrades the kind to PreviewOther (spec.md §4.9).
func (s *Store) Preview(sessionID, itemID string, maxBytes int) (*PreviewResult, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	var item Item
	var itemFound bool
	if ok {
		for _, it := range session.Items {
			if it.ID == itemID {
				item = it
				itemFound = true
				break
			}
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Errorf("no such conflict session %q", sessionID)
	}
	if !itemFound {
		return nil, errors.Errorf("no such conflict item %q", itemID)
	}

	capBytes := clampPreviewBytes(maxBytes)
	kind := ClassifyPath(item.RelativePath)

	result := &PreviewResult{Kind: kind}
	if kind != PreviewText {
		return result, nil
	}

	sourcePreview, sourceOK := readTextPrefix(item.SourcePath, capBytes)
	targetPreview, targetOK := readTextPrefix(item.TargetPath, capBytes)
	if !sourceOK || !targetOK {
		result.Kind = PreviewOther
		return result, nil
	}

	result.Source = sourcePreview
	result.Target = targetPreview
	return result, nil
}

func clampPreviewBytes(requested int) int {
	if requested <= 0 {
		return defaultPreviewBytes
	}
	if requested < minPreviewBytes {
		return minPreviewBytes
	}
	if requested > maxPreviewBytes {
		return maxPreviewBytes
	}
	return requested
}

// readTextPrefix reads up to cap bytes from path and returns them as a
// SidePreview if valid UTF-8. The second return value is false when the
// read fails or the content is not valid UTF-8, signaling the caller to
// downgrade the overall preview kind.
func readTextPrefix(path string, capBytes int) (SidePreview, bool) {
	f, err := os.Open(path)
	if err != nil {
		return SidePreview{}, false
	}
	defer f.Close()

	buffer := make([]byte, capBytes+1)
	n, readErr := f.Read(buffer)
	if readErr != nil && n == 0 {
		return SidePreview{}, false
	}

	truncated := n > capBytes
	content := buffer[:minInt(n, capBytes)]

	if !utf8.Valid(content) {
		return SidePreview{}, false
	}

	return SidePreview{Text: string(content), Truncated: truncated}, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
