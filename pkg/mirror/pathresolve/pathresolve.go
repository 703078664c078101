// Package pathresolve translates UUID-tagged logical paths into absolute
// filesystem paths via a volume.Enumerator (spec.md §4.1).
package pathresolve

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/mirror/merrors"
	"github.com/foldmirror/foldmirror/pkg/mirror/volume"
)

// tokenKind distinguishes the three supported UUID prefix tokens.
type tokenKind int

const (
	tokenNone tokenKind = iota
	tokenDiskUUID
	tokenVolumeUUID
	tokenLegacyUUID
)

// parsed is the result of splitting a logical path into its optional UUID
// token and subpath.
type parsed struct {
	kind    tokenKind
	uuid    string
	subpath string
}

// tokenPrefixes lists the recognized UUID tokens in priority order. Since
// none is a prefix of another, order does not affect matching.
var tokenPrefixes = []struct {
	prefix string
	kind   tokenKind
}{
	{"[DISK_UUID:", tokenDiskUUID},
	{"[VOLUME_UUID:", tokenVolumeUUID},
	{"[UUID:", tokenLegacyUUID},
}

// parse splits a logical path string into an optional UUID token and the
// remaining subpath. Unprefixed strings parse with kind tokenNone and the
// full string as subpath (used as a passthrough literal path).
func parse(logical string) parsed {
	for _, tp := range tokenPrefixes {
		if !strings.HasPrefix(logical, tp.prefix) {
			continue
		}
		rest := logical[len(tp.prefix):]
		closeIdx := strings.IndexByte(rest, ']')
		if closeIdx == -1 {
			continue
		}
		uuid := rest[:closeIdx]
		subpath := strings.TrimPrefix(rest[closeIdx+1:], "/")
		return parsed{kind: tp.kind, uuid: uuid, subpath: subpath}
	}
	return parsed{kind: tokenNone, subpath: logical}
}

// Resolve translates a logical path to an absolute filesystem path. For
// unprefixed strings it returns the string unchanged. For UUID-tagged
// strings it consults enumerator and fails with a
// merrors.KindVolumeNotMounted error when no mounted volume matches.
func Resolve(ctx context.Context, enumerator volume.Enumerator, logical string) (string, error) {
	p := parse(logical)
	if p.kind == tokenNone {
		return p.subpath, nil
	}

	volumes, err := enumerator.ListVolumes(ctx)
	if err != nil {
		return "", errors.Wrap(err, "unable to list volumes")
	}

	for _, v := range volumes {
		switch p.kind {
		case tokenDiskUUID:
			if v.DiskUUID == p.uuid {
				return joinMountPoint(v.MountPoint, p.subpath), nil
			}
		case tokenVolumeUUID:
			if v.VolumeUUID == p.uuid {
				return joinMountPoint(v.MountPoint, p.subpath), nil
			}
		case tokenLegacyUUID:
			if v.DiskUUID == p.uuid || v.VolumeUUID == p.uuid {
				return joinMountPoint(v.MountPoint, p.subpath), nil
			}
		}
	}

	return "", merrors.New(merrors.KindVolumeNotMounted, errors.Errorf("no mounted volume matches %q", logical))
}

// ResolveForOverlap mirrors Resolve but never fails: when the UUID token
// cannot be resolved (volume not mounted), it falls back to the literal
// logical string so that validation.TaskSet can still perform overlap
// comparison (spec.md §4.1 "the resolver falls back to the literal
// string rather than failing").
func ResolveForOverlap(ctx context.Context, enumerator volume.Enumerator, logical string) string {
	resolved, err := Resolve(ctx, enumerator, logical)
	if err != nil {
		return logical
	}
	return resolved
}

func joinMountPoint(mountPoint, subpath string) string {
	if subpath == "" {
		return mountPoint
	}
	return path.Join(mountPoint, subpath)
}
