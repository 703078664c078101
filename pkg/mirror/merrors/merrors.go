// Package merrors defines the observable error taxonomy shared across the
// sync engine, runtime coordinator, and conflict review store. Kinds are
// closed by design: a new failure mode extends this enum rather than
// introducing an ad-hoc sentinel elsewhere.
package merrors

import "fmt"

// Kind classifies an error into one of the taxonomy buckets described by
// the core design: validation failures never mutate state, I/O failures
// are fatal to the operation in progress, per-item failures are collected
// alongside partial success, and cancellation is always clean.
type Kind int

const (
	// KindValidation covers bad task ids, bad paths, bad exclusion
	// patterns, and task-set consistency violations.
	KindValidation Kind = iota
	// KindResolution covers a UUID path token that does not resolve to a
	// currently mounted volume.
	KindResolution
	// KindScanIO covers canonicalization failure, unreadable root
	// metadata, or a root that is not a directory.
	KindScanIO
	// KindCopyFailed covers a per-file I/O error during copy.
	KindCopyFailed
	// KindVerificationFailed covers a post-copy checksum mismatch.
	KindVerificationFailed
	// KindDeleteFailed covers a per-path orphan deletion error.
	KindDeleteFailed
	// KindCancelled covers a cooperatively cancelled run.
	KindCancelled
	// KindRuntimeConflict covers a manual sync attempted against a task
	// that is already syncing.
	KindRuntimeConflict
	// KindVolumeNotMounted covers UUID resolution failing at sync time.
	KindVolumeNotMounted
)

// String renders a human-readable name for a Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindScanIO:
		return "scan_io"
	case KindCopyFailed:
		return "copy_failed"
	case KindVerificationFailed:
		return "verification_failed"
	case KindDeleteFailed:
		return "delete_failed"
	case KindCancelled:
		return "cancelled"
	case KindRuntimeConflict:
		return "runtime_conflict"
	case KindVolumeNotMounted:
		return "volume_not_mounted"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying one of the Kind values above. It wraps
// an underlying cause so that errors.Is/errors.As (and
// github.com/pkg/errors Cause) continue to work across the boundary.
type Error struct {
	Kind Kind
	Err  error
}

// New constructs an Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind, allowing
// errors.Is(err, merrors.New(merrors.KindCancelled, nil)) style checks
// against a zero-valued sentinel of the desired kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}
