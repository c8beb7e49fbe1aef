package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/schaermu/assetsync/internal/assets"
	"github.com/schaermu/assetsync/internal/atomicfile"
	"github.com/schaermu/assetsync/internal/bootstrap"
	"github.com/schaermu/assetsync/internal/config"
	"github.com/schaermu/assetsync/internal/manifest"
	"github.com/schaermu/assetsync/internal/runtime"
	"github.com/schaermu/assetsync/internal/state"
)

const defaultConfigPath = "~/.config/assetsync/config.yaml"

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
	dryRun    bool

	// Manifest build flags
	manifestVersion string
	manifestExclude []string
	manifestOutput  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "assetsync",
	Short: "Incrementally extract bundled assets into a writable directory",
	Long: `assetsync keeps a writable asset directory in step with a read-only bundle.

Each bundled asset is listed in a manifest together with its content hash.
On startup, only assets whose hash changed since the last run (or whose file
went missing) are copied again. Files are written atomically, so an
interrupted run never leaves a truncated asset behind.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Synchronize assets and start the configured runtime",
	Long: `Run removes legacy paths, synchronizes the target directory with the bundle
manifest and then starts the configured runtime command with the bootstrap
search path in its environment.`,
	RunE: runRun,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize assets without starting the runtime",
	Long: `Sync removes legacy paths and brings the target directory up to date with the
bundle manifest. With --dry-run, it only reports which assets would be
extracted.`,
	RunE: runSync,
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the bootstrap search path",
	RunE:  runPath,
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Work with asset manifests",
}

var manifestBuildCmd = &cobra.Command{
	Use:   "build DIR",
	Short: "Generate a manifest for an asset directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestBuild,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("assetsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/assetsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a dotenv file before reading the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Sync command flags
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be extracted without making changes")

	// Manifest build flags
	manifestBuildCmd.Flags().StringVar(&manifestVersion, "version", "", "version recorded in the manifest")
	manifestBuildCmd.Flags().StringSliceVar(&manifestExclude, "exclude", nil, "glob patterns to leave out (may be repeated)")
	manifestBuildCmd.Flags().StringVarP(&manifestOutput, "output", "o", "", "write the manifest to this file instead of stdout")

	// Add commands
	manifestCmd.AddCommand(manifestBuildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var rt runtime.Runtime = runtime.Nop{}
	if cfg.HasRuntime() {
		rt = runtime.NewExecClient(cfg.Runtime.Command, logger)
	} else {
		logger.Warn("no runtime command configured, exiting after sync")
	}

	launcher := newLauncher(cfg, rt, logger)
	if _, err := launcher.Run(ctx); err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}

	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	launcher := newLauncher(cfg, runtime.Nop{}, logger)

	if dryRun {
		plan, err := launcher.Plan()
		if err != nil {
			return err
		}
		for _, op := range plan.Extract {
			logger.Info("[dry-run] would extract", "path", op.Path, "dest", op.DestPath)
		}
		logger.Info("[dry-run] sync plan", "extract", len(plan.Extract), "current", len(plan.Current))
		return nil
	}

	logger.Info("starting sync operation")
	if _, err := launcher.Prepare(); err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}

	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), bootstrap.BuildPath(cfg.Paths.TargetDir, cfg.Extract.Bootstrap))
	return err
}

func runManifestBuild(cmd *cobra.Command, args []string) error {
	m, err := manifest.Build(afero.NewOsFs(), args[0], manifest.BuildOptions{
		Version: manifestVersion,
		Exclude: manifestExclude,
		Name:    manifest.DefaultName,
	})
	if err != nil {
		return err
	}

	if manifestOutput == "" {
		return m.Encode(cmd.OutOrStdout())
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := atomicfile.NewWriter(afero.NewOsFs()).WriteFile(manifestOutput, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// newLauncher wires the launcher against the local filesystem
func newLauncher(cfg *config.Config, rt runtime.Runtime, logger *slog.Logger) *bootstrap.Launcher {
	fs := afero.NewOsFs()

	store, err := state.OpenFileStore(fs, cfg.StateFilePath())
	if err != nil {
		// Start over with an empty cache
		logger.Warn("discarding unreadable state file", "path", cfg.StateFilePath(), "error", err)
		store = state.NewFileStore(fs, cfg.StateFilePath())
	}

	return bootstrap.NewLauncher(cfg, fs, assets.NewDirSource(cfg.Source.Dir), store, rt, logger)
}

func loadEnvFile() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Logs go to stderr so stdout stays usable for path and manifest output
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		expanded, err := homedir.Expand(defaultConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = expanded
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"source_dir", cfg.Source.Dir,
		"target_dir", cfg.Paths.TargetDir,
		"state_dir", cfg.Paths.StateDir,
		"prefixes", len(cfg.Extract.Prefixes))

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
