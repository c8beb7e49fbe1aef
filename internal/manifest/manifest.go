package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/jsonc"

	"github.com/schaermu/assetsync/internal/assets"
)

// DefaultName is the manifest document name at the root of an asset bundle
const DefaultName = "build.json"

// Manifest lists every bundled asset and its content hash
type Manifest struct {
	Version string            `json:"version"`
	Assets  map[string]string `json:"assets"`
}

// ReadError reports a manifest document that is missing or cannot be parsed
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read manifest %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Parse decodes a manifest document. Comments and trailing commas are
// accepted; documents that do not match the schema are not.
func Parse(data []byte) (*Manifest, error) {
	data = jsonc.ToJSON(data)
	if err := validate(data); err != nil {
		return nil, fmt.Errorf("invalid manifest document: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest document: %w", err)
	}
	return &m, nil
}

// Load reads and parses the manifest named name from src
func Load(src assets.Source, name string) (*Manifest, error) {
	rc, err := src.Open(name)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}

	m, err := Parse(data)
	if err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}
	return m, nil
}

// Hash returns the content hash recorded for path
func (m *Manifest) Hash(path string) (string, bool) {
	h, ok := m.Assets[path]
	return h, ok
}

// Paths returns all asset paths in lexical order
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Assets))
	for p := range m.Assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Encode writes the manifest as indented JSON. encoding/json sorts map keys,
// so the output is stable for a given manifest.
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
