//go:build linux

package hostfs

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceSize probes a raw block device's size via BLKGETSIZE64, for the
// case where a container is read directly off a device node rather than a
// regular file (Stat().Size() reports 0 for block devices).
func deviceSize(f *os.File) (int64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("hostfs: BLKGETSIZE64: %w", errno)
	}
	return int64(size), nil
}
