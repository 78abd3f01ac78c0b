//go:build !windows

package artifact

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createLockFile exclusively creates the lock file and takes flock on it.
// POSIX unlink does not care about open handles, so the flock is what other
// processes probe to decide whether the pair is still in use.
func createLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot flock %s: %w", path, err)
	}
	return f, nil
}

// removeLock deletes the lock file unless a live holder has it flocked, in
// which case it returns ErrLockHeld and leaves the file alone. A missing
// file surfaces as fs.ErrNotExist.
func removeLock(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLockHeld
		}
		return err
	}
	return os.Remove(path)
}
