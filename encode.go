package sqlext

import "strings"

// loaderPath encodes a library path the way SQLite's load_extension
// expects it. SQLite 3.7.17+ appends the platform dll suffix itself, so
// the suffix is stripped first. winDlOpen wants a UTF-8 path while the
// Unix VFS hands the bytes straight to dlopen; a Go string carries the
// path's native bytes and is UTF-8 on Windows, so one representation
// satisfies both contracts.
func loaderPath(path, suffix string) string {
	return strings.TrimSuffix(path, suffix)
}
