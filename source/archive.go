package source

import (
	"archive/zip"
	"fmt"
	"io"
	"path"

	"github.com/wippyai/wasm-launcher/errors"
)

// ManifestPath is where an archive keeps its manifest.
const ManifestPath = "bundle.yaml"

// ArchiveSource serves resources from a zip bundle.
type ArchiveSource struct {
	reader   *zip.ReadCloser
	files    map[string]*zip.File
	manifest *Manifest
	location string
}

// OpenArchive opens a zip bundle and indexes its entries. A malformed
// manifest fails the open; a missing one is fine.
func OpenArchive(location string) (*ArchiveSource, error) {
	rc, err := zip.OpenReader(location)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "open archive "+location)
	}

	a := &ArchiveSource{
		reader:   rc,
		files:    make(map[string]*zip.File, len(rc.File)),
		location: location,
	}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[path.Clean(f.Name)] = f
	}

	if mf, ok := a.files[ManifestPath]; ok {
		data, err := readZipFile(mf)
		if err == nil {
			a.manifest, err = ParseManifest(data)
		}
		if err != nil {
			_ = rc.Close()
			return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "read manifest of "+location)
		}
	}

	return a, nil
}

// Manifest returns the archive manifest, or nil.
func (a *ArchiveSource) Manifest() *Manifest {
	return a.manifest
}

func (a *ArchiveSource) Locate(p string) (Resource, bool) {
	f, ok := a.files[path.Clean(p)]
	if !ok {
		return nil, false
	}
	return &archiveResource{archive: a, file: f}, true
}

func (a *ArchiveSource) String() string {
	return "zip:" + a.location
}

// Close releases the archive handle.
func (a *ArchiveSource) Close() error {
	return a.reader.Close()
}

type archiveResource struct {
	archive *ArchiveSource
	file    *zip.File
}

func (r *archiveResource) Open() (io.ReadCloser, error) { return r.file.Open() }
func (r *archiveResource) Origin() string               { return r.archive.location }
func (r *archiveResource) Path() string                 { return r.file.Name }
func (r *archiveResource) Manifest() *Manifest          { return r.archive.manifest }

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}
