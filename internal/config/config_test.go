package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Paths: PathsConfig{
			TargetDir: "/var/lib/app/assets",
			CacheDir:  "/var/cache/app/assets",
			StateDir:  "/var/lib/app/state",
		},
		Source: SourceConfig{
			Dir:      "/usr/share/app/assets",
			Manifest: "build.json",
		},
		Extract: ExtractConfig{
			Prefixes:  []string{"chaquopy", "stdlib", "cacert.pem"},
			Bootstrap: []string{"chaquopy", "stdlib"},
			AppPath:   []string{"app", "requirements"},
		},
		Legacy: LegacyConfig{
			Files: []string{"app.zip"},
			Cache: []string{"AssetFinder/app.mp3"},
		},
	}
}

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	content := `
paths:
  target_dir: "/var/lib/app/assets"
  cache_dir: "/var/cache/app/assets"
  state_dir: "/var/lib/app/state"

source:
  dir: "/usr/share/app/assets"

extract:
  prefixes: [chaquopy, stdlib, lib-dynload/x86_64, cacert.pem]
  bootstrap: [chaquopy, stdlib, lib-dynload/x86_64]
  app_path: [app, requirements]

legacy:
  files: [app.zip, requirements.zip, chaquopy.mp3, stdlib.mp3]
  cache: [AssetFinder/app.mp3, AssetFinder/requirements.mp3]

runtime:
  command: ["/usr/bin/app", "--serve"]
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify loaded values
	if cfg.Paths.TargetDir != "/var/lib/app/assets" {
		t.Errorf("expected target dir /var/lib/app/assets, got %s", cfg.Paths.TargetDir)
	}
	if cfg.Source.Manifest != "build.json" {
		t.Errorf("expected default manifest build.json, got %s", cfg.Source.Manifest)
	}
	if len(cfg.Extract.Bootstrap) != 3 || cfg.Extract.Bootstrap[2] != "lib-dynload/x86_64" {
		t.Errorf("unexpected bootstrap list: %v", cfg.Extract.Bootstrap)
	}
	if len(cfg.Legacy.Cache) != 2 {
		t.Errorf("expected 2 legacy cache entries, got %v", cfg.Legacy.Cache)
	}
	if !cfg.HasRuntime() {
		t.Error("expected runtime command to be configured")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("paths: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "no cache dir without legacy cache entries",
			mutate: func(c *Config) { c.Paths.CacheDir = ""; c.Legacy.Cache = nil },
		},
		{
			name:    "missing target dir",
			mutate:  func(c *Config) { c.Paths.TargetDir = "" },
			wantErr: "paths.target_dir is required",
		},
		{
			name:    "missing state dir",
			mutate:  func(c *Config) { c.Paths.StateDir = "" },
			wantErr: "paths.state_dir is required",
		},
		{
			name:    "missing source dir",
			mutate:  func(c *Config) { c.Source.Dir = "" },
			wantErr: "source.dir is required",
		},
		{
			name:    "relative target dir",
			mutate:  func(c *Config) { c.Paths.TargetDir = "relative/path" },
			wantErr: "must be an absolute path",
		},
		{
			name:    "relative cache dir",
			mutate:  func(c *Config) { c.Paths.CacheDir = "cache" },
			wantErr: "paths.cache_dir must be an absolute path",
		},
		{
			name:    "no prefixes",
			mutate:  func(c *Config) { c.Extract.Prefixes = nil; c.Extract.Bootstrap = nil },
			wantErr: "extract.prefixes must list at least one entry",
		},
		{
			name:    "bootstrap entry not extracted",
			mutate:  func(c *Config) { c.Extract.Bootstrap = append(c.Extract.Bootstrap, "lib") },
			wantErr: `extract.bootstrap entry "lib" is not listed`,
		},
		{
			name:    "prefix with trailing slash",
			mutate:  func(c *Config) { c.Extract.Prefixes = append(c.Extract.Prefixes, "stdlib/") },
			wantErr: "extract.prefixes",
		},
		{
			name:    "absolute legacy path",
			mutate:  func(c *Config) { c.Legacy.Files = []string{"/etc/passwd"} },
			wantErr: "legacy.files",
		},
		{
			name:    "escaping legacy path",
			mutate:  func(c *Config) { c.Legacy.Files = []string{"../other"} },
			wantErr: "legacy.files",
		},
		{
			name:    "legacy path dot",
			mutate:  func(c *Config) { c.Legacy.Files = []string{"."} },
			wantErr: "legacy.files",
		},
		{
			name:    "legacy cache without cache dir",
			mutate:  func(c *Config) { c.Paths.CacheDir = "" },
			wantErr: "legacy.cache requires paths.cache_dir",
		},
		{
			name:    "manifest outside source dir",
			mutate:  func(c *Config) { c.Source.Manifest = "../build.json" },
			wantErr: "source.manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if cfg.Source.Manifest != "build.json" {
		t.Errorf("expected default manifest build.json, got %q", cfg.Source.Manifest)
	}

	cfg = &Config{Source: SourceConfig{Manifest: "assets.json"}}
	cfg.applyDefaults()
	if cfg.Source.Manifest != "assets.json" {
		t.Errorf("explicit manifest overwritten: %q", cfg.Source.Manifest)
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := validConfig()

	if got := cfg.StateFilePath(); got != "/var/lib/app/state/state.json" {
		t.Errorf("StateFilePath() = %s", got)
	}
	if cfg.HasRuntime() {
		t.Error("HasRuntime() should be false without a command")
	}
}

func TestExpandPaths(t *testing.T) {
	t.Setenv("APP_ROOT", "/srv/app")
	t.Setenv("APP_BIN", "/srv/app/bin/run")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := &Config{
		Paths: PathsConfig{
			TargetDir: "$APP_ROOT/assets",
			StateDir:  "~/.local/state/app",
		},
		Source:  SourceConfig{Dir: "${APP_ROOT}/bundle"},
		Runtime: RuntimeConfig{Command: []string{"$APP_BIN", "--flag"}},
	}

	if err := cfg.expandPaths(); err != nil {
		t.Fatalf("expandPaths: %v", err)
	}

	if cfg.Paths.TargetDir != "/srv/app/assets" {
		t.Errorf("TargetDir = %s", cfg.Paths.TargetDir)
	}
	if cfg.Paths.StateDir != filepath.Join(home, ".local/state/app") {
		t.Errorf("StateDir = %s, want under %s", cfg.Paths.StateDir, home)
	}
	if cfg.Source.Dir != "/srv/app/bundle" {
		t.Errorf("Source.Dir = %s", cfg.Source.Dir)
	}
	if cfg.Runtime.Command[0] != "/srv/app/bin/run" {
		t.Errorf("Runtime.Command[0] = %s", cfg.Runtime.Command[0])
	}
}
