//go:build linux

package fuse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"github.com/vaultimg/vaultimg/internal/logger"
)

// Mount serves entries as a read-only FUSE filesystem at mountpoint, reading
// their bytes directly from image, until a termination signal arrives.
func Mount(mountpoint string, image io.ReaderAt, entries []Entry, log *logger.Logger) error {
	created, err := prepareMountpoint(mountpoint)
	if err != nil {
		return err
	}
	if created {
		defer os.Remove(mountpoint)
	}

	c, err := fuse.Mount(mountpoint)
	if err != nil {
		return err
	}
	defer c.Close()

	volume := NewVolumeFS(image, entries)

	go func() {
		srv := fusefs.New(c, nil)
		if err := srv.Serve(volume); err != nil {
			log.Errorf("fuse serve error: %v", err)
		}
	}()

	return waitForUnmount(mountpoint, log)
}

func waitForUnmount(mountpoint string, log *logger.Logger) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	log.Info("mounted, waiting for termination signal")

	const maxUnmountRetries = 3
	attempts := 0

	for sig := range sigc {
		log.Infof("signal received: %v", sig)

		if attempts >= maxUnmountRetries {
			return fmt.Errorf("fuse: maximum unmount retries (%d) exceeded for %s", maxUnmountRetries, mountpoint)
		}

		log.Infof("attempting unmount of %s (attempt %d/%d)", mountpoint, attempts+1, maxUnmountRetries)
		if err := fuse.Unmount(mountpoint); err == nil {
			log.Info("unmounted successfully")
			return nil
		} else {
			attempts++
			log.Warnf("unmount failed: %v, waiting for another signal to retry", err)
		}
	}
	return nil
}

// prepareMountpoint ensures mountpoint is a valid, empty directory,
// creating it if it does not already exist. It reports whether it created
// the directory so the caller can clean it up after unmounting.
func prepareMountpoint(mountpoint string) (bool, error) {
	info, err := os.Stat(mountpoint)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(mountpoint, 0o755); err != nil {
			return false, fmt.Errorf("fuse: creating mountpoint %s: %w", mountpoint, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("fuse: stat mountpoint %s: %w", mountpoint, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("fuse: mountpoint %s is not a directory", mountpoint)
	}

	empty, err := isDirEmpty(mountpoint)
	if err != nil {
		return false, fmt.Errorf("fuse: checking mountpoint %s: %w", mountpoint, err)
	}
	if !empty {
		return false, fmt.Errorf("fuse: mountpoint %s is not empty", mountpoint)
	}
	return false, nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return err != nil, err
}
