package merrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesKindAndCause(t *testing.T) {
	err := New(KindCopyFailed, errors.New("disk full"))
	assert.Equal(t, "copy_failed: disk full", err.Error())
}

func TestError_MessageWithoutCauseIsKindOnly(t *testing.T) {
	err := New(KindCancelled, nil)
	assert.Equal(t, "cancelled", err.Error())
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := New(KindScanIO, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_IsMatchesSameKindRegardlessOfCause(t *testing.T) {
	err := New(KindCancelled, errors.New("a"))
	sentinel := New(KindCancelled, nil)
	assert.True(t, errors.Is(err, sentinel))
}

func TestError_IsDoesNotMatchDifferentKind(t *testing.T) {
	err := New(KindCancelled, errors.New("a"))
	sentinel := New(KindCopyFailed, nil)
	assert.False(t, errors.Is(err, sentinel))
}

func TestKind_StringRendersEveryKnownKind(t *testing.T) {
	cases := map[Kind]string{
		KindValidation:         "validation",
		KindResolution:         "resolution",
		KindScanIO:             "scan_io",
		KindCopyFailed:         "copy_failed",
		KindVerificationFailed: "verification_failed",
		KindDeleteFailed:       "delete_failed",
		KindCancelled:          "cancelled",
		KindRuntimeConflict:    "runtime_conflict",
		KindVolumeNotMounted:   "volume_not_mounted",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
