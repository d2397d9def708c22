// Package fileid supplies the platform-stable file identity that
// repo.Repository seeds fileIds from (spec §4.2/§9: "fileId seeded from a
// platform-stable identity (inode or equivalent) to keep cross-module
// references consistent within a project"). Grounded on the original
// frontend's Tools.cpp::getFileUniqueId, which uses stat().st_ino on unix
// and left Windows as a TODO; this package supplies the portable fallback.
package fileid

import (
	"hash/fnv"
	"path/filepath"
)

// Stable returns a platform-stable identifier for path. On platforms where
// the inode number is available (see fileid_unix.go) it is used directly,
// so that the same file always yields the same identity across separate
// runs of the analysis on the same project. Elsewhere, or when stat fails
// (missing file, unsupported platform), it falls back to a hash of the
// canonicalized path.
func Stable(path string) uint64 {
	if ino, ok := inode(path); ok {
		return ino
	}
	return hashPath(path)
}

func hashPath(path string) uint64 {
	clean := filepath.Clean(path)
	h := fnv.New64a()
	_, _ = h.Write([]byte(clean))
	return h.Sum64()
}
