// Package assets provides read-only access to the bundled asset tree.
package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Source is a read-only hierarchical asset store. Paths are slash-separated
// and relative to the root of the bundle.
type Source interface {
	// Open returns a stream over the asset at path. A missing asset is
	// reported as *NotFoundError.
	Open(path string) (io.ReadCloser, error)
}

// NotFoundError reports an asset path the source cannot open
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// FSSource implements Source on top of an afero filesystem
type FSSource struct {
	fs afero.Fs
}

// NewFSSource wraps fsys. Writes through the returned source are impossible;
// the filesystem is wrapped read-only.
func NewFSSource(fsys afero.Fs) *FSSource {
	return &FSSource{fs: afero.NewReadOnlyFs(fsys)}
}

// NewDirSource serves assets from a directory on the local disk
func NewDirSource(dir string) *FSSource {
	return NewFSSource(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewIOFSSource serves assets from an io/fs filesystem, e.g. an embed.FS
func NewIOFSSource(fsys fs.FS) *FSSource {
	return NewFSSource(afero.FromIOFS{FS: fsys})
}

// Open implements Source
func (s *FSSource) Open(name string) (io.ReadCloser, error) {
	clean := path.Clean(name)
	if !fs.ValidPath(clean) {
		return nil, &NotFoundError{Path: name, Err: fs.ErrInvalid}
	}

	f, err := s.fs.Open(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, &NotFoundError{Path: name, Err: err}
		}
		return nil, fmt.Errorf("failed to open asset %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat asset %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, &NotFoundError{Path: name, Err: fmt.Errorf("%s is a directory", name)}
	}

	return f, nil
}
