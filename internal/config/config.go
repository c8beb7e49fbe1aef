package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/assetsync/internal/manifest"
)

// Config represents the complete assetsync configuration
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Source  SourceConfig  `yaml:"source"`
	Extract ExtractConfig `yaml:"extract"`
	Legacy  LegacyConfig  `yaml:"legacy"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	TargetDir string `yaml:"target_dir"`
	CacheDir  string `yaml:"cache_dir"`
	StateDir  string `yaml:"state_dir"`
}

// SourceConfig configures the read-only asset bundle
type SourceConfig struct {
	Dir      string `yaml:"dir"`
	Manifest string `yaml:"manifest"`
}

// ExtractConfig selects which manifest entries are materialized and how the
// runtime sees them
type ExtractConfig struct {
	Prefixes  []string `yaml:"prefixes"`
	Bootstrap []string `yaml:"bootstrap"`
	AppPath   []string `yaml:"app_path"`
}

// LegacyConfig lists paths left behind by earlier deployment layouts
type LegacyConfig struct {
	Files []string `yaml:"files"` // relative to paths.target_dir
	Cache []string `yaml:"cache"` // relative to paths.cache_dir
}

// RuntimeConfig configures the process started after synchronization
type RuntimeConfig struct {
	Command []string `yaml:"command"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables and ~ in path fields
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandPaths expands environment variables and a leading ~ in all
// directory fields
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Paths.TargetDir,
		&c.Paths.CacheDir,
		&c.Paths.StateDir,
		&c.Source.Dir,
	} {
		expanded, err := homedir.Expand(os.ExpandEnv(*p))
		if err != nil {
			return err
		}
		*p = expanded
	}

	c.Source.Manifest = os.ExpandEnv(c.Source.Manifest)
	for i := range c.Runtime.Command {
		c.Runtime.Command[i] = os.ExpandEnv(c.Runtime.Command[i])
	}
	return nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Source.Manifest == "" {
		c.Source.Manifest = manifest.DefaultName
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate paths
	if c.Paths.TargetDir == "" {
		return fmt.Errorf("paths.target_dir is required")
	}
	if c.Paths.StateDir == "" {
		return fmt.Errorf("paths.state_dir is required")
	}
	if c.Source.Dir == "" {
		return fmt.Errorf("source.dir is required")
	}

	// Ensure paths are absolute
	for name, dir := range map[string]string{
		"paths.target_dir": c.Paths.TargetDir,
		"paths.state_dir":  c.Paths.StateDir,
		"source.dir":       c.Source.Dir,
	} {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s must be an absolute path: %s", name, dir)
		}
	}
	if c.Paths.CacheDir != "" && !filepath.IsAbs(c.Paths.CacheDir) {
		return fmt.Errorf("paths.cache_dir must be an absolute path: %s", c.Paths.CacheDir)
	}

	if err := validRelative("source.manifest", c.Source.Manifest); err != nil {
		return err
	}

	// Validate extract lists
	if len(c.Extract.Prefixes) == 0 {
		return fmt.Errorf("extract.prefixes must list at least one entry")
	}
	prefixes := make(map[string]bool, len(c.Extract.Prefixes))
	for _, p := range c.Extract.Prefixes {
		if err := validRelative("extract.prefixes", p); err != nil {
			return err
		}
		prefixes[p] = true
	}
	for _, b := range c.Extract.Bootstrap {
		if !prefixes[b] {
			return fmt.Errorf("extract.bootstrap entry %q is not listed in extract.prefixes", b)
		}
	}
	for _, a := range c.Extract.AppPath {
		if err := validRelative("extract.app_path", a); err != nil {
			return err
		}
	}

	// Validate legacy lists
	for _, f := range c.Legacy.Files {
		if err := validRelative("legacy.files", f); err != nil {
			return err
		}
	}
	if len(c.Legacy.Cache) > 0 && c.Paths.CacheDir == "" {
		return fmt.Errorf("legacy.cache requires paths.cache_dir")
	}
	for _, f := range c.Legacy.Cache {
		if err := validRelative("legacy.cache", f); err != nil {
			return err
		}
	}

	return nil
}

// validRelative checks that p is a clean, slash-separated relative path that
// stays within its base directory
func validRelative(field, p string) error {
	if p == "" {
		return fmt.Errorf("%s: empty path", field)
	}
	if path.IsAbs(p) || path.Clean(p) != p || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return fmt.Errorf("%s: %q must be a clean relative path", field, p)
	}
	return nil
}

// StateFilePath returns the path to the asset state file
func (c *Config) StateFilePath() string {
	return filepath.Join(c.Paths.StateDir, "state.json")
}

// HasRuntime reports whether a runtime command is configured
func (c *Config) HasRuntime() bool {
	return len(c.Runtime.Command) > 0
}
