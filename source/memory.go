package source

import (
	"bytes"
	"io"
	"path"
	"sync"
)

// MemorySource serves resources from an in-memory map.
type MemorySource struct {
	files    map[string][]byte
	manifest *Manifest
	origin   string
	mu       sync.RWMutex
}

// Memory creates an in-memory source. files is keyed by resource path.
func Memory(origin string, files map[string][]byte) *MemorySource {
	m := &MemorySource{files: make(map[string][]byte, len(files)), origin: origin}
	for p, data := range files {
		m.files[path.Clean(p)] = data
	}
	return m
}

// WithManifest attaches a manifest to every resource of the source.
func (m *MemorySource) WithManifest(mf *Manifest) *MemorySource {
	m.manifest = mf
	return m
}

// Put adds or replaces a file.
func (m *MemorySource) Put(p string, data []byte) {
	m.mu.Lock()
	m.files[path.Clean(p)] = data
	m.mu.Unlock()
}

// PutModule stores data under the resource path of a module name.
func (m *MemorySource) PutModule(name string, data []byte) {
	m.Put(Path(name), data)
}

func (m *MemorySource) Locate(p string) (Resource, bool) {
	p = path.Clean(p)
	m.mu.RLock()
	data, ok := m.files[p]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &memoryResource{source: m, path: p, data: data}, true
}

func (m *MemorySource) String() string {
	return "mem:" + m.origin
}

type memoryResource struct {
	source *MemorySource
	path   string
	data   []byte
}

func (r *memoryResource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(r.data)), nil
}
func (r *memoryResource) Origin() string      { return r.source.origin }
func (r *memoryResource) Path() string        { return r.path }
func (r *memoryResource) Manifest() *Manifest { return r.source.manifest }
