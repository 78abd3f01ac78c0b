// Package resource resolves the bundled extension payload: a direct
// filesystem path, a byte stream that must be extracted, or nothing at all
// on platforms without a bundled build.
package resource

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// Kind classifies how a payload can be reached.
type Kind int

const (
	// Unsupported means no payload is available on this platform.
	Unsupported Kind = iota
	// DirectPath means the payload already exists on disk and can be
	// handed to the loader as-is.
	DirectPath
	// ExtractionRequired means the payload is only reachable as a byte
	// stream and must be written out before loading.
	ExtractionRequired
)

// Location is the result of resolving a payload.
type Location struct {
	Kind Kind
	// Path is set only for DirectPath.
	Path string
}

// Source supplies the bundled payload.
type Source interface {
	// Locate reports how the payload can be reached.
	Locate() Location
	// Open returns the payload bytes for extraction.
	Open() (io.ReadCloser, error)
}

// Default returns the payload embedded into this binary. Binaries built
// without the embed_ext tag carry no payload, and the returned Source
// resolves as Unsupported.
func Default() Source {
	return FromBytes(libraryData)
}

// FromBytes returns a Source backed by an in-memory payload. Empty data
// means no payload (Unsupported).
func FromBytes(data []byte) Source {
	return bytesSource(data)
}

type bytesSource []byte

func (b bytesSource) Locate() Location {
	if len(b) == 0 {
		return Location{Kind: Unsupported}
	}
	return Location{Kind: ExtractionRequired}
}

func (b bytesSource) Open() (io.ReadCloser, error) {
	if len(b) == 0 {
		return nil, errors.New("no payload bundled for this platform")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FromFile returns a Source for a payload already present on disk, e.g. a
// development build of the extension next to the binary. A missing file
// resolves as Unsupported.
func FromFile(path string) Source {
	return fileSource(path)
}

type fileSource string

func (f fileSource) Locate() Location {
	if _, err := os.Stat(string(f)); err != nil {
		return Location{Kind: Unsupported}
	}
	return Location{Kind: DirectPath, Path: string(f)}
}

func (f fileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}
