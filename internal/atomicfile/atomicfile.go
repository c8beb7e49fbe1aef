package atomicfile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// TempSuffix is appended to the target name to form the temporary file name.
// The name is deterministic so a temp file left behind by an interrupted run
// is found and replaced by the next one.
const TempSuffix = ".tmp"

const copyBufferSize = 1024 * 1024

// TempPath returns the temporary path used while writing target
func TempPath(target string) string {
	return target + TempSuffix
}

// Writer publishes files by writing them next to their final name and
// renaming them into place.
type Writer struct {
	fs afero.Fs
}

// NewWriter creates a writer operating on fs
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// WriteFrom streams r into the temporary file for target and renames it to
// target. The parent directory must already exist. On error the temporary
// file is removed and target is left untouched.
func (w *Writer) WriteFrom(target string, r io.Reader, perm os.FileMode) (err error) {
	tmpPath := TempPath(target)

	// Never append to stale partial data from an earlier run
	if err := w.fs.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale temp file %s: %w", tmpPath, err)
	}

	tmpFile, err := w.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmpPath)
		}
	}()

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(tmpFile, r, buf); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to flush %s: %w", tmpPath, err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := w.fs.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, target, err)
	}

	return nil
}

// WriteFile is WriteFrom for in-memory content
func (w *Writer) WriteFile(target string, data []byte, perm os.FileMode) error {
	return w.WriteFrom(target, bytes.NewReader(data), perm)
}
