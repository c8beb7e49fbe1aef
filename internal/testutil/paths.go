// Package testutil holds helpers shared by package and integration tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// FindProjectRoot walks up the directory tree from the caller's source file
// to the directory holding go.mod
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	return findRoot(filepath.Dir(filename))
}

// ExampleConfigPath returns the path of the example configuration shipped
// with the repository
func ExampleConfigPath() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	root, err := findRoot(filepath.Dir(filename))
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "examples", "config.yaml"), nil
}

func findRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
