// Package bootstrap runs the startup sequence that prepares the asset tree
// and hands it to the runtime.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/schaermu/assetsync/internal/assets"
	"github.com/schaermu/assetsync/internal/cleanup"
	"github.com/schaermu/assetsync/internal/config"
	"github.com/schaermu/assetsync/internal/manifest"
	"github.com/schaermu/assetsync/internal/runtime"
	"github.com/schaermu/assetsync/internal/state"
	"github.com/schaermu/assetsync/internal/sync"
)

// Launcher prepares the target directory and starts the runtime
type Launcher struct {
	cfg     *config.Config
	fs      afero.Fs
	source  assets.Source
	store   state.Store
	runtime runtime.Runtime
	logger  *slog.Logger
}

// NewLauncher creates a new launcher
func NewLauncher(cfg *config.Config, fs afero.Fs, source assets.Source, store state.Store, rt runtime.Runtime, logger *slog.Logger) *Launcher {
	return &Launcher{
		cfg:     cfg,
		fs:      fs,
		source:  source,
		store:   store,
		runtime: rt,
		logger:  logger,
	}
}

// Prepare removes legacy paths, synchronizes the target directory and returns
// the environment the runtime would be started with
func (l *Launcher) Prepare() (*runtime.Environment, error) {
	l.removeLegacy()

	m, err := manifest.Load(l.source, l.cfg.Source.Manifest)
	if err != nil {
		return nil, err
	}

	engine := sync.NewEngine(l.fs, l.source, l.store, l.logger)
	if _, err := engine.Sync(m, l.cfg.Extract.Prefixes, l.cfg.Paths.TargetDir); err != nil {
		return nil, fmt.Errorf("failed to synchronize assets: %w", err)
	}

	return l.environment(m), nil
}

// Plan loads the manifest and reports what Prepare would extract, without
// removing or writing anything
func (l *Launcher) Plan() (*sync.Plan, error) {
	m, err := manifest.Load(l.source, l.cfg.Source.Manifest)
	if err != nil {
		return nil, err
	}

	engine := sync.NewEngine(l.fs, l.source, l.store, l.logger)
	return engine.Plan(m, l.cfg.Extract.Prefixes, l.cfg.Paths.TargetDir)
}

// Run prepares the asset tree and starts the runtime with it
func (l *Launcher) Run(ctx context.Context) (*runtime.Environment, error) {
	env, err := l.Prepare()
	if err != nil {
		return nil, err
	}

	if err := l.runtime.Start(ctx, *env); err != nil {
		return env, fmt.Errorf("failed to start runtime: %w", err)
	}
	return env, nil
}

// removeLegacy deletes paths from earlier layouts. Failures are logged and
// otherwise ignored.
func (l *Launcher) removeLegacy() {
	cleaner := cleanup.NewCleaner(l.fs, l.logger)

	if err := cleaner.Cleanup(l.cfg.Paths.TargetDir, l.cfg.Legacy.Files); err != nil {
		l.logger.Warn("legacy cleanup incomplete", "base", l.cfg.Paths.TargetDir, "error", err)
	}
	if l.cfg.Paths.CacheDir != "" {
		if err := cleaner.Cleanup(l.cfg.Paths.CacheDir, l.cfg.Legacy.Cache); err != nil {
			l.logger.Warn("legacy cleanup incomplete", "base", l.cfg.Paths.CacheDir, "error", err)
		}
	}
}

func (l *Launcher) environment(m *manifest.Manifest) *runtime.Environment {
	appPath := make([]string, len(l.cfg.Extract.AppPath))
	copy(appPath, l.cfg.Extract.AppPath)

	return &runtime.Environment{
		TargetDir:       l.cfg.Paths.TargetDir,
		Path:            BuildPath(l.cfg.Paths.TargetDir, l.cfg.Extract.Bootstrap),
		AppPath:         appPath,
		ManifestVersion: m.Version,
	}
}
