package manifest

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// BuildOptions controls manifest generation
type BuildOptions struct {
	// Version is recorded as the manifest version
	Version string
	// Exclude holds doublestar patterns matched against relative asset paths
	Exclude []string
	// Name is the manifest document name, which is never listed as an asset.
	// Defaults to DefaultName.
	Name string
}

// Build walks root and returns a manifest listing every file with its
// BLAKE3 content hash.
func Build(fs afero.Fs, root string, opts BuildOptions) (*Manifest, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	files, err := DiscoverFiles(fs, root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover assets: %w", err)
	}

	m := &Manifest{
		Version: opts.Version,
		Assets:  make(map[string]string, len(files)),
	}

	for _, file := range files {
		rel, err := RelativePath(root, file)
		if err != nil {
			return nil, fmt.Errorf("failed to compute relative path: %w", err)
		}
		if rel == name || excluded(rel, opts.Exclude) {
			continue
		}

		hash, err := fileHash(fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to compute hash for %s: %w", file, err)
		}
		m.Assets[rel] = hash
	}

	return m, nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// fileHash computes the BLAKE3 hash of a file
func fileHash(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
