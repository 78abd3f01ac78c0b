//go:build !windows

// Package probe validates that a freshly extracted library file is
// actually loadable by the host dynamic-library loader.
package probe

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// Probe loads the library at path and immediately unloads it. It never
// keeps a handle; the real load is the consumer's responsibility.
func Probe(path string) error {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}
	return purego.Dlclose(h)
}

// AccessDenied reports whether a failed probe is explained by the current
// account lacking read+execute permission on path. dlerror only yields an
// opaque message, so the permission bits are checked directly.
func AccessDenied(_ error, path string) bool {
	return unix.Access(path, unix.R_OK|unix.X_OK) != nil
}
