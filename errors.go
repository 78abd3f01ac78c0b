package sqlext

import (
	"errors"
	"fmt"

	"github.com/bagtoad/sqlext/internal/artifact"
)

// ErrUnsupportedPlatform reports that no extension payload is bundled for
// this platform and no direct path exists.
var ErrUnsupportedPlatform = errors.New("no bundled extension for this platform")

// ErrRetryExhausted reports pathological name collisions while creating
// the temp-file pair.
var ErrRetryExhausted = artifact.ErrRetryExhausted

// BrokenTempDirError reports a temp directory whose permissions prevent
// loading anything from it. Retrying is pointless; the directory itself
// needs fixing. Some installers are known to strip execute permission from
// the user temp directory.
type BrokenTempDirError struct {
	Dir string
}

func (e *BrokenTempDirError) Error() string {
	return fmt.Sprintf("broken temporary directory (missing read+execute permission): %s", e.Dir)
}
