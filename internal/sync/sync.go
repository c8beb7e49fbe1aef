package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/schaermu/assetsync/internal/assets"
	"github.com/schaermu/assetsync/internal/atomicfile"
	"github.com/schaermu/assetsync/internal/manifest"
	"github.com/schaermu/assetsync/internal/state"
)

// Engine reconciles a target directory with a manifest
type Engine struct {
	fs     afero.Fs
	source assets.Source
	store  state.Store
	writer *atomicfile.Writer
	logger *slog.Logger
}

// NewEngine creates a new sync engine
func NewEngine(fs afero.Fs, source assets.Source, store state.Store, logger *slog.Logger) *Engine {
	return &Engine{
		fs:     fs,
		source: source,
		store:  store,
		writer: atomicfile.NewWriter(fs),
		logger: logger,
	}
}

// InScope reports whether path equals one of prefixes or lies below one
func InScope(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Sync ensures every in-scope manifest asset is present and current in
// targetDir. Cache updates are committed once, after all assets succeeded;
// the first failure aborts the pass without committing anything.
//
// The manifest is the only source of the asset list. The asset source is
// never enumerated.
func (e *Engine) Sync(m *manifest.Manifest, prefixes []string, targetDir string) (*Result, error) {
	e.logger.Info("starting sync",
		"manifest_version", m.Version,
		"target_dir", targetDir,
		"assets", len(m.Assets))

	result := &Result{Extracted: make([]string, 0)}

	for _, path := range m.Paths() {
		if !InScope(path, prefixes) {
			continue
		}

		extracted, err := e.ensure(targetDir, path, m.Assets[path])
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", path, err)
		}
		if extracted {
			result.Extracted = append(result.Extracted, path)
		} else {
			result.Current++
		}
	}

	if err := e.store.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit asset state: %w", err)
	}

	e.logger.Info("sync completed",
		"extracted", len(result.Extracted),
		"current", result.Current)
	return result, nil
}

// Plan computes which in-scope assets a sync pass would extract without
// touching the filesystem
func (e *Engine) Plan(m *manifest.Manifest, prefixes []string, targetDir string) (*Plan, error) {
	plan := &Plan{
		Extract: make([]FileOp, 0),
		Current: make([]FileOp, 0),
	}

	for _, path := range m.Paths() {
		if !InScope(path, prefixes) {
			continue
		}

		dest, err := destPath(targetDir, path)
		if err != nil {
			return nil, err
		}

		op := FileOp{Path: path, DestPath: dest, Hash: m.Assets[path]}
		if e.current(op) {
			plan.Current = append(plan.Current, op)
		} else {
			plan.Extract = append(plan.Extract, op)
		}
	}

	return plan, nil
}

// ensure makes the asset at path current, returning whether it had to be
// extracted
func (e *Engine) ensure(targetDir, path, hash string) (bool, error) {
	dest, err := destPath(targetDir, path)
	if err != nil {
		return false, err
	}

	op := FileOp{Path: path, DestPath: dest, Hash: hash}
	if e.current(op) {
		return false, nil
	}

	e.logger.Info("extracting asset", "path", path, "dest", dest)

	// Outdated content is replaced, never patched
	if err := e.fs.Remove(dest); err != nil && !os.IsNotExist(err) {
		e.logger.Debug("failed to remove outdated asset", "dest", dest, "error", err)
	}

	if err := e.ensureDir(filepath.Dir(dest)); err != nil {
		return false, err
	}

	src, err := e.source.Open(path)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = src.Close()
	}()

	if err := e.writer.WriteFrom(dest, src, 0644); err != nil {
		return false, &WriteError{Path: dest, Err: err}
	}

	e.store.Put(state.AssetKey(path), hash)
	return true, nil
}

// current reports whether op's destination exists and was last extracted
// from content with op's hash
func (e *Engine) current(op FileOp) bool {
	if _, err := e.fs.Stat(op.DestPath); err != nil {
		return false
	}
	cached, ok := e.store.Get(state.AssetKey(op.Path))
	return ok && cached == op.Hash
}

// ensureDir creates dir if needed and verifies the result is a directory
func (e *Engine) ensureDir(dir string) error {
	if info, err := e.fs.Stat(dir); err == nil && info.IsDir() {
		return nil
	}

	mkdirErr := e.fs.MkdirAll(dir, 0755)

	info, err := e.fs.Stat(dir)
	if err != nil {
		if mkdirErr != nil {
			err = mkdirErr
		}
		return &DirectoryError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryError{Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// destPath maps a manifest path into targetDir, rejecting paths that would
// escape it
func destPath(targetDir, path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("invalid asset path %q", path)
	}
	return filepath.Join(targetDir, local), nil
}
