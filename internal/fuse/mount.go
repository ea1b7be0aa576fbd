//go:build !linux

package fuse

import (
	"fmt"
	"io"

	"github.com/vaultimg/vaultimg/internal/logger"
)

// Mount is unsupported outside Linux; bazil.org/fuse only implements the
// kernel-level FUSE protocol for Linux and macOS, and vaultimg only ships
// the Linux driver.
func Mount(mountpoint string, image io.ReaderAt, entries []Entry, log *logger.Logger) error {
	return fmt.Errorf("fuse: mount is only supported on Linux")
}
