package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildPath returns the search path for the runtime: each entry resolved
// under targetDir, in the given order, joined with the platform list
// separator
func BuildPath(targetDir string, entries []string) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, filepath.Join(targetDir, filepath.FromSlash(entry)))
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
