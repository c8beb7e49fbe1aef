package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DiscoverFiles finds all regular files below dir, including symlinks that
// resolve to regular files. Hidden files and directories (names starting
// with ".") are skipped. A symlink that is dangling or points at a directory
// is an error.
func DiscoverFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string

	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden files and directories (e.g. .git, .DS_Store)
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to resolve symlink %s: %w", path, err)
			}
			if !target.Mode().IsRegular() {
				return fmt.Errorf("symlink %s does not point to a regular file", path)
			}
			files = append(files, path)
			return nil
		}

		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// RelativePath returns target relative to baseDir in manifest form
// (slash-separated)
func RelativePath(baseDir, target string) (string, error) {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
