//go:build unix

package walk

import (
	"os"
	"syscall"
)

func sysInode(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
