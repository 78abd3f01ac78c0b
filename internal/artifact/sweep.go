package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SweepResult tallies what a temp-directory sweep did, per candidate pair.
type SweepResult struct {
	Removed int // orphaned pairs deleted
	InUse   int // pairs left alone because a live process holds the lock
	Failed  int // pairs skipped after an unexpected error
}

// Sweep scans dir for library files matching prefix and libSuffix left
// behind by earlier runs and deletes the ones no longer in use. The lock
// file goes first: a delete refused with ErrLockHeld proves a live holder,
// and the pair is left untouched since its owner may be executing the
// library. Sweep is advisory; per-candidate errors are logged and counted,
// never surfaced to the caller.
func Sweep(dir, prefix, libSuffix string, log *zap.Logger) SweepResult {
	var res SweepResult
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("cannot scan temp directory", zap.String("dir", dir), zap.Error(err))
		return res
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, libSuffix) {
			continue
		}
		libPath := filepath.Join(dir, name)
		lockPath := strings.TrimSuffix(libPath, libSuffix) + LockSuffix

		switch err := removeLock(lockPath); {
		case err == nil:
			log.Debug("stale lock file deleted", zap.String("lock", lockPath))
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("stale lock file already gone", zap.String("lock", lockPath))
		case errors.Is(err, ErrLockHeld):
			log.Debug("lock file still in use, keeping pair", zap.String("lock", lockPath))
			res.InUse++
			continue
		default:
			log.Warn("unexpected error deleting stale lock file",
				zap.String("lock", lockPath), zap.Error(err))
			res.Failed++
			continue
		}

		if err := os.Remove(libPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("unexpected error deleting stale library",
				zap.String("library", libPath), zap.Error(err))
			res.Failed++
			continue
		}
		log.Debug("stale library deleted", zap.String("library", libPath))
		res.Removed++
	}
	return res
}
