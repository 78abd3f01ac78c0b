//go:build windows

// Package probe validates that a freshly extracted library file is
// actually loadable by the host dynamic-library loader.
package probe

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Probe loads the library at path and immediately unloads it. It never
// keeps a handle; the real load is the consumer's responsibility.
func Probe(path string) error {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return err
	}
	return windows.FreeLibrary(h)
}

// AccessDenied reports whether a failed probe is explained by the current
// account lacking read+execute permission on path. Some installers are
// known to strip NTFS permissions from the user temp directory; a load
// failure there needs a different user message than a corrupt library.
func AccessDenied(err error, path string) bool {
	if !errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return false
	}
	return !canReadAndExecute(path)
}

func canReadAndExecute(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_EXECUTE,
		0, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return false
	}
	windows.CloseHandle(h)
	return true
}
