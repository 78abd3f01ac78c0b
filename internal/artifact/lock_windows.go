//go:build windows

package artifact

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// createLockFile exclusively creates the lock file with a share mode that
// excludes deletion. While the handle is open, a delete attempt by any
// process fails with ERROR_SHARING_VIOLATION, which is the in-use signal.
func createLockFile(path string) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ,
		nil, windows.CREATE_NEW, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_EXISTS) {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrExist}
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(h), path), nil
}

// removeLock deletes the lock file unless a live holder keeps it open, in
// which case it returns ErrLockHeld and leaves the file alone. A missing
// file surfaces as fs.ErrNotExist.
func removeLock(path string) error {
	err := os.Remove(path)
	if errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
		return ErrLockHeld
	}
	return err
}
