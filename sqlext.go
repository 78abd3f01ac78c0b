// Package sqlext extracts a bundled SQLite extension library into the OS
// temp directory so a connection's load_extension call can reach it by
// path, and coordinates creation, reuse and cleanup of the extracted file
// across concurrent threads and processes.
//
// The binary cannot hand the loader a path into its own executable, so the
// payload is written to a uniquely named temp file paired with a lock
// file. The open lock handle marks the pair as in use; later runs sweep
// the temp directory and reclaim pairs whose lock is no longer held.
package sqlext

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/bagtoad/sqlext/internal/artifact"
	"github.com/bagtoad/sqlext/internal/probe"
	"github.com/bagtoad/sqlext/internal/resource"
)

// Conn is the subset of a SQLite connection needed to load an extension.
// Extension loading must already be enabled on the connection.
type Conn interface {
	LoadExtension(path string) error
}

// Config identifies the bundled payload.
type Config struct {
	// Package namespaces the identity so unrelated consumers of this
	// module never collide in the shared temp directory.
	Package string
	// Name is the extension's base name without suffix, e.g. "sqlite_ext".
	Name string
	// Source supplies the payload. Defaults to resource.Default(), the
	// payload embedded into this binary.
	Source resource.Source
}

// Extension manages one bundled extension payload for the process
// lifetime. All methods are safe for concurrent use.
type Extension struct {
	pkg      string
	name     string
	src      resource.Source
	log      *zap.Logger
	tempDir  string
	attempts int

	// Seams for tests; default to the real host loader.
	probe        func(path string) error
	accessDenied func(err error, path string) bool

	mu        sync.Mutex
	extracted string
	pair      *artifact.Pair // lock held open for the rest of the process
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger routes trace and assumption-violation output to log.
func WithLogger(log *zap.Logger) Option {
	return func(e *Extension) {
		if log != nil {
			e.log = log
		}
	}
}

// WithCreateAttempts bounds the unique-name retry loop during extraction.
func WithCreateAttempts(n int) Option {
	return func(e *Extension) { e.attempts = n }
}

// WithTempDir overrides os.TempDir as the extraction target.
func WithTempDir(dir string) Option {
	return func(e *Extension) { e.tempDir = dir }
}

// New returns an Extension for the payload described by cfg.
func New(cfg Config, opts ...Option) *Extension {
	e := &Extension{
		pkg:          cfg.Package,
		name:         cfg.Name,
		src:          cfg.Source,
		log:          zap.NewNop(),
		attempts:     artifact.DefaultCreateAttempts,
		probe:        probe.Probe,
		accessDenied: probe.AccessDenied,
	}
	if e.src == nil {
		e.src = resource.Default()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DLLSuffix returns the shared-library suffix for this platform: ".dll",
// ".dylib" or ".so".
func DLLSuffix() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

// Basename returns the extension's file name for this platform, e.g.
// "sqlite_ext.so".
func (e *Extension) Basename() string {
	return e.name + DLLSuffix()
}

// Identity returns the stable identifier embedded in this extension's
// temp-file names. It is identical across runs, processes and machines.
func (e *Extension) Identity() string {
	return artifact.Identity(e.pkg, e.name)
}

// ExtractedPath returns a filesystem path to the extension library, valid
// for the rest of the process. The first call may extract the payload;
// later calls return the memoized path without touching the filesystem.
// A failed extraction is not memoized: the pair is discarded and the next
// call retries from scratch.
func (e *Extension) ExtractedPath() (string, error) {
	loc := e.src.Locate()
	switch loc.Kind {
	case resource.DirectPath:
		return loc.Path, nil
	case resource.Unsupported:
		return "", fmt.Errorf("%s: %w", e.name, ErrUnsupportedPlatform)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.extracted != "" {
		return e.extracted, nil
	}

	pair, err := e.extract()
	if err != nil {
		return "", err
	}
	e.pair = pair
	e.extracted = pair.LibPath
	return e.extracted, nil
}

// LoadInto loads the extension into conn. SQLite appends the platform
// suffix itself, so the path is passed without it.
func (e *Extension) LoadInto(conn Conn) error {
	path, err := e.ExtractedPath()
	if err != nil {
		return err
	}
	return conn.LoadExtension(loaderPath(path, DLLSuffix()))
}

// SweepStale removes artifacts left by earlier runs whose lock is no
// longer held, without extracting anything. Extraction performs the same
// sweep automatically; this exists for explicit cleanup tooling.
func (e *Extension) SweepStale() artifact.SweepResult {
	return artifact.Sweep(e.dir(), artifact.Prefix(e.pkg, e.name), DLLSuffix(), e.log)
}

func (e *Extension) dir() string {
	if e.tempDir != "" {
		return e.tempDir
	}
	return os.TempDir()
}

// extract runs the full protocol: sweep stale pairs, create a fresh pair,
// sanity-check the lock, write and close the payload, then probe-load it.
// Callers hold e.mu.
func (e *Extension) extract() (*artifact.Pair, error) {
	dir := e.dir()
	prefix := artifact.Prefix(e.pkg, e.name)
	suffix := DLLSuffix()

	e.log.Debug("extracting bundled extension",
		zap.String("name", e.name), zap.String("dir", dir))

	res := artifact.Sweep(dir, prefix, suffix, e.log)
	e.log.Debug("stale artifact sweep finished",
		zap.Int("removed", res.Removed),
		zap.Int("in_use", res.InUse),
		zap.Int("failed", res.Failed))

	pair, err := artifact.CreatePair(dir, prefix, suffix, e.attempts)
	if err != nil {
		return nil, err
	}
	pair.VerifyLocked(e.log)

	payload, err := e.src.Open()
	if err != nil {
		pair.Discard()
		return nil, fmt.Errorf("cannot open bundled payload: %w", err)
	}
	err = pair.WriteFrom(payload)
	payload.Close()
	if err != nil {
		pair.Discard()
		return nil, err
	}

	if err := e.probe(pair.LibPath); err != nil {
		broken := e.accessDenied(err, pair.LibPath)
		pair.Discard()
		if broken {
			return nil, &BrokenTempDirError{Dir: dir}
		}
		// Loader errors other than the broken-temp-dir case propagate
		// unchanged.
		return nil, err
	}

	e.log.Debug("extension extracted", zap.String("path", pair.LibPath))
	return pair, nil
}
