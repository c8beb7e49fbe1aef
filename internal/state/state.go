// Package state persists which content hash each extracted asset was last
// synchronized from.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/schaermu/assetsync/internal/atomicfile"
)

// AssetKeyPrefix namespaces asset entries in the store
const AssetKeyPrefix = "asset."

// AssetKey returns the store key for an asset path
func AssetKey(path string) string {
	return AssetKeyPrefix + path
}

// Store is a durable key/value store with batched writes. Put values are
// visible to Get immediately but only become durable on Commit.
type Store interface {
	Get(key string) (string, bool)
	Put(key, value string)
	Commit() error
}

// Snapshot is the on-disk form of a FileStore
type Snapshot struct {
	Entries map[string]string `json:"entries"`
}

// FileStore implements Store as a JSON document that is rewritten atomically
// on every Commit that has pending entries.
type FileStore struct {
	fs      afero.Fs
	path    string
	writer  *atomicfile.Writer
	entries map[string]string
	pending map[string]string
}

// NewFileStore returns an empty store backed by path. Nothing is read or
// written until Commit.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{
		fs:      fs,
		path:    path,
		writer:  atomicfile.NewWriter(fs),
		entries: make(map[string]string),
		pending: make(map[string]string),
	}
}

// OpenFileStore loads the store at path. A missing file yields an empty
// store. A file that cannot be parsed is reported as an error.
func OpenFileStore(fs afero.Fs, path string) (*FileStore, error) {
	s := NewFileStore(fs, path)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	for k, v := range snap.Entries {
		s.entries[k] = v
	}

	return s, nil
}

// Path returns the location of the state file
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store
func (s *FileStore) Get(key string) (string, bool) {
	if v, ok := s.pending[key]; ok {
		return v, true
	}
	v, ok := s.entries[key]
	return v, ok
}

// Put implements Store
func (s *FileStore) Put(key, value string) {
	s.pending[key] = value
}

// Pending returns the number of entries waiting for Commit
func (s *FileStore) Pending() int {
	return len(s.pending)
}

// Commit implements Store. Without pending entries it does not touch the
// filesystem.
func (s *FileStore) Commit() error {
	if len(s.pending) == 0 {
		return nil
	}

	merged := make(map[string]string, len(s.entries)+len(s.pending))
	for k, v := range s.entries {
		merged[k] = v
	}
	for k, v := range s.pending {
		merged[k] = v
	}

	data, err := json.MarshalIndent(Snapshot{Entries: merged}, "", "  ")
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := s.writer.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.entries = merged
	s.pending = make(map[string]string)
	return nil
}
