package source

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Source locates resources by slash-separated path.
type Source interface {
	Locate(path string) (Resource, bool)
	String() string
}

// Resource is a located, openable module file.
type Resource interface {
	Open() (io.ReadCloser, error)
	// Origin identifies the container the resource came from: a directory
	// root or an archive path.
	Origin() string
	// Path is the resource path within its origin.
	Path() string
	// Manifest returns the container manifest, or nil if there is none.
	Manifest() *Manifest
}

// Open creates a source for a filesystem location. Paths ending in .zip or
// .bundle are opened as archives, everything else as directories.
func Open(location string) (Source, error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".zip", ".bundle":
		return OpenArchive(location)
	default:
		return Dir(location), nil
	}
}

// Set is an ordered, append-only list of sources safe for concurrent use.
type Set struct {
	sources []Source
	mu      sync.RWMutex
}

// NewSet creates a set searching the given sources in order.
func NewSet(sources ...Source) *Set {
	return &Set{sources: append([]Source(nil), sources...)}
}

// Add appends a source; it is searched after all existing ones.
func (s *Set) Add(src Source) {
	s.mu.Lock()
	s.sources = append(s.sources, src)
	s.mu.Unlock()
}

// Sources returns a snapshot of the sources in search order.
func (s *Set) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Source(nil), s.sources...)
}

// Locate returns the resource from the first source that has path.
func (s *Set) Locate(path string) (Resource, bool) {
	for _, src := range s.Sources() {
		if res, ok := src.Locate(path); ok {
			return res, true
		}
	}
	return nil, false
}

// Close closes every source that holds open handles.
func (s *Set) Close() error {
	var err error
	for _, src := range s.Sources() {
		if c, ok := src.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
