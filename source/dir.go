package source

import (
	"io"
	"os"
	"path"
	"path/filepath"
)

// DirSource serves resources from a directory tree.
type DirSource struct {
	root string
}

// Dir creates a directory source rooted at root.
func Dir(root string) *DirSource {
	return &DirSource{root: filepath.Clean(root)}
}

// Root returns the directory the source serves from.
func (d *DirSource) Root() string {
	return d.root
}

func (d *DirSource) Locate(p string) (Resource, bool) {
	p = path.Clean("/" + p)[1:]
	if p == "" {
		return nil, false
	}
	full := filepath.Join(d.root, filepath.FromSlash(p))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return &fileResource{root: d.root, path: p, full: full}, true
}

func (d *DirSource) String() string {
	return "dir:" + d.root
}

type fileResource struct {
	root string
	path string
	full string
}

func (f *fileResource) Open() (io.ReadCloser, error) { return os.Open(f.full) }
func (f *fileResource) Origin() string               { return f.root }
func (f *fileResource) Path() string                 { return f.path }
func (f *fileResource) Manifest() *Manifest          { return nil }
