package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/schaermu/assetsync/internal/manifest"
)

// WriteBundle writes files below dir and generates a manifest for them, the
// same way the manifest build command does. Keys of files are slash-separated
// paths relative to dir.
func WriteBundle(t *testing.T, dir, version string, files map[string]string) *manifest.Manifest {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}

	m, err := manifest.Build(afero.NewOsFs(), dir, manifest.BuildOptions{Version: version})
	if err != nil {
		t.Fatalf("failed to build manifest: %v", err)
	}

	f, err := os.Create(filepath.Join(dir, manifest.DefaultName))
	if err != nil {
		t.Fatalf("failed to create manifest: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := m.Encode(f); err != nil {
		t.Fatalf("failed to encode manifest: %v", err)
	}
	return m
}
