package cleanup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Cleaner removes paths produced by earlier deployment schemes
type Cleaner struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewCleaner creates a new cleaner
func NewCleaner(fs afero.Fs, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		fs:     fs,
		logger: logger,
	}
}

// Cleanup deletes every legacy path below baseDir, including whole directory
// trees. Paths that do not exist are skipped. Failures do not stop the
// cleanup; they are logged and returned together.
func (c *Cleaner) Cleanup(baseDir string, legacyPaths []string) error {
	var errs []error

	for _, rel := range legacyPaths {
		root := filepath.Join(baseDir, filepath.FromSlash(rel))
		if !within(baseDir, root) {
			c.logger.Warn("skipping legacy path outside base directory", "base", baseDir, "path", rel)
			continue
		}

		removed, err := c.removeTree(root)
		if err != nil {
			c.logger.Warn("failed to remove legacy path", "path", root, "error", err)
			errs = append(errs, err)
		}
		if removed > 0 {
			c.logger.Info("removed legacy path", "path", root, "entries", removed)
		}
	}

	return errors.Join(errs...)
}

type node struct {
	path    string
	visited bool
}

// removeTree deletes root and everything below it, children before parents.
// An explicit stack keeps memory bounded for deep trees.
func (c *Cleaner) removeTree(root string) (int, error) {
	var (
		errs    []error
		removed int
	)

	stack := []node{{path: root}}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.visited {
			if err := c.fs.Remove(n.path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
				continue
			}
			removed++
			continue
		}

		info, err := c.lstat(n.path)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}

		// Symlinks are removed, never followed
		if !info.IsDir() {
			if err := c.fs.Remove(n.path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
				continue
			}
			removed++
			continue
		}

		children, err := afero.ReadDir(c.fs, n.path)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to list %s: %w", n.path, err))
			continue
		}

		stack = append(stack, node{path: n.path, visited: true})
		for _, child := range children {
			stack = append(stack, node{path: filepath.Join(n.path, child.Name())})
		}
	}

	return removed, errors.Join(errs...)
}

func (c *Cleaner) lstat(path string) (os.FileInfo, error) {
	if lst, ok := c.fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(path)
		return info, err
	}
	return c.fs.Stat(path)
}

// within reports whether path lies strictly below baseDir
func within(baseDir, path string) bool {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
