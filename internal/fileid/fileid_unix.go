//go:build unix

package fileid

import "golang.org/x/sys/unix"

func inode(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Ino), true
}
