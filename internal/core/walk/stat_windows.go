//go:build windows

package walk

import "os"

func sysInode(info os.FileInfo) uint64 {
	// Windows exposes no inode through os.FileInfo; callers fall back to
	// size+mtime fingerprinting.
	return 0
}
