package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LockSuffix is the extension of the placeholder file whose open handle
// marks the paired library as in use.
const LockSuffix = ".lck"

// DefaultCreateAttempts bounds how many fresh random names CreatePair
// tries before giving up.
const DefaultCreateAttempts = 10

var (
	// ErrLockHeld reports that a lock file could not be deleted because a
	// live process still holds it open.
	ErrLockHeld = errors.New("lock file is held by another process")

	// ErrRetryExhausted reports that every attempted artifact name
	// collided with an existing file.
	ErrRetryExhausted = errors.New("too many retries creating artifact pair")
)

// randomToken produces the unique portion of an artifact name.
// Overridable in tests to force collisions.
var randomToken = func() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}

// Pair is a lock+library file pair in the temp directory. The lock handle
// stays open until Release; the library file is open for writing until
// WriteFrom completes.
type Pair struct {
	LockPath string
	LibPath  string

	lock *os.File
	lib  *os.File
}

// CreatePair creates a fresh, collision-free lock+library pair under dir.
// Names are prefix+token+LockSuffix and prefix+token+libSuffix. A lock
// name collision retries with a new token, up to attempts times
// (DefaultCreateAttempts when attempts <= 0). A library name collision
// after winning the lock name means the uniqueness scheme is broken and is
// fatal.
func CreatePair(dir, prefix, libSuffix string, attempts int) (*Pair, error) {
	if attempts <= 0 {
		attempts = DefaultCreateAttempts
	}
	for i := 0; i < attempts; i++ {
		lockPath := filepath.Join(dir, prefix+randomToken()+LockSuffix)
		lock, err := createLockFile(lockPath)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cannot create lock file: %w", err)
		}

		libPath := strings.TrimSuffix(lockPath, LockSuffix) + libSuffix
		lib, err := os.OpenFile(libPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
		if err != nil {
			lock.Close()
			os.Remove(lockPath)
			return nil, fmt.Errorf("library name already taken for fresh lock %s: %w", lockPath, err)
		}
		return &Pair{LockPath: lockPath, LibPath: libPath, lock: lock, lib: lib}, nil
	}
	return nil, ErrRetryExhausted
}

// WriteFrom copies the payload into the library file and closes it. The
// file must be closed before any load attempt; loading a file still open
// for writing is refused or unreliable depending on platform.
func (p *Pair) WriteFrom(r io.Reader) error {
	if p.lib == nil {
		return errors.New("library file already written")
	}
	_, copyErr := io.Copy(p.lib, r)
	closeErr := p.lib.Close()
	p.lib = nil
	if copyErr != nil {
		return fmt.Errorf("cannot write library: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("cannot close library: %w", closeErr)
	}
	return nil
}

// VerifyLocked checks that the freshly created lock actually resists
// deletion. If the delete goes through, another process could reclaim the
// pair while this one is still using it; that is logged as an assumption
// violation, not recovered from.
func (p *Pair) VerifyLocked(log *zap.Logger) {
	switch err := removeLock(p.LockPath); {
	case errors.Is(err, ErrLockHeld):
		// Expected: this process holds it.
	case err == nil:
		log.Warn("assumption violated: lock file deleted while held, extraction may race",
			zap.String("lock", p.LockPath))
	default:
		log.Warn("unexpected error self-checking lock file",
			zap.String("lock", p.LockPath), zap.Error(err))
	}
	if _, err := os.Stat(p.LockPath); err != nil {
		log.Warn("assumption violated: lock file missing after create",
			zap.String("lock", p.LockPath), zap.Error(err))
	}
}

// Release closes the lock handle, giving up the in-use claim on the pair.
// A successful extraction never calls this; the lock stays open for the
// remainder of the process.
func (p *Pair) Release() {
	if p.lib != nil {
		p.lib.Close()
		p.lib = nil
	}
	if p.lock != nil {
		p.lock.Close()
		p.lock = nil
	}
}

// Discard releases the pair and best-effort removes both files, so a
// failed extraction does not leave orphans for the next run to sweep.
func (p *Pair) Discard() {
	p.Release()
	os.Remove(p.LibPath)
	os.Remove(p.LockPath)
}
