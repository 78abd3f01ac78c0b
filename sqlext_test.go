package sqlext

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bagtoad/sqlext/internal/artifact"
	"github.com/bagtoad/sqlext/internal/resource"
)

var testPayload = []byte("not really a shared library, but good enough to extract")

// newTestExtension builds an Extension over an in-memory payload with the
// real load probe stubbed out, since the payload is not a loadable library.
func newTestExtension(t *testing.T, dir string) *Extension {
	t.Helper()
	e := New(Config{
		Package: "github.com/bagtoad/sqlext/test",
		Name:    "testext",
		Source:  resource.FromBytes(testPayload),
	}, WithTempDir(dir))
	e.probe = func(string) error { return nil }
	e.accessDenied = func(error, string) bool { return false }
	return e
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
	}
	return names
}

func TestExtractCreatesOnePair(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatalf("ExtractedPath failed: %v", err)
	}
	if !strings.HasSuffix(path, DLLSuffix()) {
		t.Errorf("extracted path has wrong suffix: %s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(testPayload) {
		t.Errorf("extracted contents mismatch")
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("expected exactly one lock/library pair, got %v", names)
	}

	// Second call returns the memoized path and creates nothing new.
	again, err := e.ExtractedPath()
	if err != nil {
		t.Fatal(err)
	}
	if again != path {
		t.Errorf("second call returned a different path: %s vs %s", again, path)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("second call created files: %v", names)
	}
}

func TestConcurrentCallersShareOneExtraction(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	var extractions int
	e.probe = func(string) error {
		extractions++
		return nil
	}

	const n = 16
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = e.ExtractedPath()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("caller %d got a different path: %s vs %s", i, paths[i], paths[0])
		}
	}
	if extractions != 1 {
		t.Errorf("expected exactly one extraction, got %d", extractions)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("expected one pair after concurrent calls, got %v", names)
	}
}

func TestExtractLeavesHeldPairUntouched(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	// Simulate another process mid-use: same prefix, lock held open.
	prefix := artifact.Prefix(e.pkg, e.name)
	other, err := artifact.CreatePair(dir, prefix, DLLSuffix(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == other.LibPath {
		t.Fatalf("extraction reused the held pair: %s", path)
	}
	for _, p := range []string{other.LockPath, other.LibPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("held pair file deleted: %s: %v", p, err)
		}
	}
	if names := listDir(t, dir); len(names) != 4 {
		t.Errorf("expected two pairs, got %v", names)
	}
}

func TestExtractReclaimsOrphanedPair(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	prefix := artifact.Prefix(e.pkg, e.name)
	orphanLock := filepath.Join(dir, prefix+"deadbeef"+artifact.LockSuffix)
	orphanLib := filepath.Join(dir, prefix+"deadbeef"+DLLSuffix())
	if err := os.WriteFile(orphanLock, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(orphanLib, []byte("stale"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{orphanLock, orphanLib} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("orphan file survived extraction: %s", p)
		}
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("fresh pair missing: %v", err)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Errorf("expected only the fresh pair, got %v", names)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	e := New(Config{
		Package: "pkg",
		Name:    "testext",
		Source:  resource.FromBytes(nil),
	}, WithTempDir(t.TempDir()))

	_, err := e.ExtractedPath()
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestDirectPathSkipsExtraction(t *testing.T) {
	dir := t.TempDir()
	onDisk := filepath.Join(dir, "testext"+DLLSuffix())
	if err := os.WriteFile(onDisk, testPayload, 0o755); err != nil {
		t.Fatal(err)
	}

	tempDir := t.TempDir()
	e := New(Config{
		Package: "pkg",
		Name:    "testext",
		Source:  resource.FromFile(onDisk),
	}, WithTempDir(tempDir))

	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != onDisk {
		t.Errorf("expected the on-disk path back, got %s", path)
	}
	if names := listDir(t, tempDir); len(names) != 0 {
		t.Errorf("direct path still extracted files: %v", names)
	}
}

func TestBrokenTempDirClassification(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	loadErr := errors.New("loader said no")
	e.probe = func(string) error { return loadErr }
	e.accessDenied = func(error, string) bool { return true }

	_, err := e.ExtractedPath()
	var broken *BrokenTempDirError
	if !errors.As(err, &broken) {
		t.Fatalf("expected BrokenTempDirError, got %v", err)
	}
	if broken.Dir != dir {
		t.Errorf("error carries wrong directory: %s", broken.Dir)
	}
}

func TestProbeErrorPropagatesUnchanged(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	loadErr := errors.New("loader said no")
	e.probe = func(string) error { return loadErr }

	_, err := e.ExtractedPath()
	if err != loadErr {
		t.Fatalf("expected the loader error unchanged, got %v", err)
	}
	// Failure is not memoized and leaves no files behind.
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("failed extraction left files: %v", names)
	}
}

func TestFailedExtractionRetries(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	calls := 0
	e.probe = func(string) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}

	if _, err := e.ExtractedPath(); err == nil {
		t.Fatal("expected first call to fail")
	}
	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatalf("retry after failure did not succeed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("retried extraction missing on disk: %v", err)
	}
}

func TestLoadIntoStripsSuffix(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtension(t, dir)

	var got string
	conn := connFunc(func(path string) error {
		got = path
		return nil
	})
	if err := e.LoadInto(conn); err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}

	path, err := e.ExtractedPath()
	if err != nil {
		t.Fatal(err)
	}
	want := strings.TrimSuffix(path, DLLSuffix())
	if got != want {
		t.Errorf("loader got %q, want suffix-less %q", got, want)
	}
}

type connFunc func(string) error

func (f connFunc) LoadExtension(path string) error { return f(path) }

func TestBasename(t *testing.T) {
	e := New(Config{Package: "pkg", Name: "testext"})
	if e.Basename() != "testext"+DLLSuffix() {
		t.Errorf("unexpected basename: %s", e.Basename())
	}
}

func TestLoaderPath(t *testing.T) {
	if got := loaderPath("/tmp/x.so", ".so"); got != "/tmp/x" {
		t.Errorf("loaderPath = %q", got)
	}
	if got := loaderPath("/tmp/x", ".so"); got != "/tmp/x" {
		t.Errorf("loaderPath on suffix-less input = %q", got)
	}
}
