//go:build integration

package startup

import (
	"context"
	"strings"
	"testing"

	"github.com/schaermu/assetsync/internal/atomicfile"
	"github.com/schaermu/assetsync/internal/testutil"
)

const (
	// Test paths, relative to the harness root
	bundleDir  = "bundle"
	targetDir  = "files/assets"
	cacheDir   = "cache"
	stateDir   = "state"
	configPath = "config/config.yaml"
	envDump    = "runtime.env"
)

func TestStartup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	if err := h.BuildBinary(ctx); err != nil {
		t.Fatalf("build binary: %v", err)
	}

	writeBundle(t, h, "1.0", map[string]string{
		"stdlib/os.py":       "import posix\n",
		"stdlib/json/enc.py": "def encode(): pass\n",
		"cacert.pem":         "-----BEGIN CERTIFICATE-----\n",
		"app/main.py":        "print('hello')\n",
	})
	writeConfig(t, h)

	t.Run("A_LegacyCleanupAndInitialSync", func(t *testing.T) {
		h.WriteFile(targetDir+"/stdlib.mp3", "legacy archive")
		h.WriteFile(cacheDir+"/AssetFinder/app.mp3", "legacy cache")
		h.WriteFile(cacheDir+"/AssetFinder/current.zip", "live cache")

		h.MustRun(ctx, "--config", h.Path(configPath), "sync")

		for _, rel := range []string{targetDir + "/stdlib.mp3", cacheDir + "/AssetFinder/app.mp3"} {
			if h.FileExists(rel) {
				t.Errorf("legacy path %s still exists", rel)
			}
		}
		if !h.FileExists(cacheDir + "/AssetFinder/current.zip") {
			t.Error("cleanup removed a cache file that is not listed as legacy")
		}
		assertContent(t, h, targetDir+"/stdlib/os.py", "import posix\n")
		assertContent(t, h, targetDir+"/stdlib/json/enc.py", "def encode(): pass\n")
		assertContent(t, h, targetDir+"/cacert.pem", "-----BEGIN CERTIFICATE-----\n")
		if h.FileExists(targetDir + "/app") {
			t.Error("app/ is outside the extract prefixes and must not be extracted")
		}
		if !h.FileExists(stateDir + "/state.json") {
			t.Error("state file was not written")
		}
	})

	t.Run("B_NoOpSyncLeavesFilesAlone", func(t *testing.T) {
		// A local edit survives as long as the cached hash matches the manifest
		h.WriteFile(targetDir+"/stdlib/os.py", "locally edited\n")

		h.MustRun(ctx, "--config", h.Path(configPath), "sync")

		assertContent(t, h, targetDir+"/stdlib/os.py", "locally edited\n")
	})

	t.Run("C_ChangedAssetIsReextracted", func(t *testing.T) {
		writeBundle(t, h, "1.1", map[string]string{
			"stdlib/os.py": "import posix, sys\n",
		})
		h.WriteFile(targetDir+"/cacert.pem", "locally edited\n")

		h.MustRun(ctx, "--config", h.Path(configPath), "sync")

		assertContent(t, h, targetDir+"/stdlib/os.py", "import posix, sys\n")
		assertContent(t, h, targetDir+"/cacert.pem", "locally edited\n")
	})

	t.Run("D_MissingFileIsRestored", func(t *testing.T) {
		h.Remove(targetDir + "/stdlib/json")

		h.MustRun(ctx, "--config", h.Path(configPath), "sync")

		assertContent(t, h, targetDir+"/stdlib/json/enc.py", "def encode(): pass\n")
	})

	t.Run("E_InterruptedExtractionRecovers", func(t *testing.T) {
		// Simulate a crash mid-copy: a half-written temp file is left behind
		// and the state file never learned about the new hash
		writeBundle(t, h, "1.2", map[string]string{
			"cacert.pem": "-----BEGIN CERTIFICATE-----\nrotated\n",
		})
		h.WriteFile(atomicfile.TempPath(targetDir+"/cacert.pem"), "-----BEGIN CERT")

		h.MustRun(ctx, "--config", h.Path(configPath), "sync")

		assertContent(t, h, targetDir+"/cacert.pem", "-----BEGIN CERTIFICATE-----\nrotated\n")
		if h.FileExists(atomicfile.TempPath(targetDir + "/cacert.pem")) {
			t.Error("temporary file left behind")
		}
	})

	t.Run("F_DryRunMode", func(t *testing.T) {
		h.Remove(targetDir)

		_, stderr := h.MustRun(ctx, "--config", h.Path(configPath), "sync", "--dry-run")

		if !strings.Contains(stderr, "[dry-run] would extract") {
			t.Errorf("dry-run output missing plan lines:\n%s", stderr)
		}
		if h.FileExists(targetDir) {
			t.Error("dry run must not create the target directory")
		}
	})

	t.Run("G_PathCommand", func(t *testing.T) {
		stdout, _ := h.MustRun(ctx, "--config", h.Path(configPath), "path")

		if got := strings.TrimSpace(stdout); got != h.Path(targetDir+"/stdlib") {
			t.Errorf("path = %q, want %q", got, h.Path(targetDir+"/stdlib"))
		}
	})

	t.Run("H_RunStartsRuntimeWithEnvironment", func(t *testing.T) {
		h.MustRun(ctx, "--config", h.Path(configPath), "run")

		dump, err := h.ReadFile(envDump)
		if err != nil {
			t.Fatalf("runtime did not run: %v", err)
		}
		for _, want := range []string{
			"ASSETSYNC_TARGET_DIR=" + h.Path(targetDir),
			"ASSETSYNC_PATH=" + h.Path(targetDir+"/stdlib"),
			"ASSETSYNC_APP_PATH=app",
			"ASSETSYNC_MANIFEST_VERSION=1.2",
		} {
			if !strings.Contains(dump, want) {
				t.Errorf("runtime environment missing %q:\n%s", want, dump)
			}
		}
		assertContent(t, h, targetDir+"/stdlib/os.py", "import posix, sys\n")
	})

	t.Run("I_MissingAssetFailsStartup", func(t *testing.T) {
		h.Remove(bundleDir + "/cacert.pem")
		h.Remove(targetDir + "/cacert.pem")
		h.Remove(envDump)

		_, stderr, exitCode, err := h.Run(ctx, "--config", h.Path(configPath), "run")
		if err != nil {
			t.Fatal(err)
		}
		if exitCode == 0 {
			t.Fatalf("expected failure for missing bundled asset\nstderr: %s", stderr)
		}
		if h.FileExists(envDump) {
			t.Error("runtime must not start after a failed sync")
		}
	})
}

// writeBundle merges files into the bundle and regenerates its manifest
func writeBundle(t *testing.T, h *Harness, version string, files map[string]string) {
	t.Helper()
	testutil.WriteBundle(t, h.Path(bundleDir), version, files)
}

func writeConfig(t *testing.T, h *Harness) {
	t.Helper()
	h.WriteFile(configPath, `paths:
  target_dir: "`+h.Path(targetDir)+`"
  cache_dir: "`+h.Path(cacheDir)+`"
  state_dir: "`+h.Path(stateDir)+`"
source:
  dir: "`+h.Path(bundleDir)+`"
extract:
  prefixes: [stdlib, cacert.pem]
  bootstrap: [stdlib]
  app_path: [app]
legacy:
  files: [stdlib.mp3]
  cache: [AssetFinder/app.mp3, AssetFinder/requirements.mp3]
runtime:
  command: ["sh", "-c", "env > `+h.Path(envDump)+`"]
`)
}

func assertContent(t *testing.T, h *Harness, rel, want string) {
	t.Helper()
	got, err := h.ReadFile(rel)
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	if got != want {
		t.Errorf("%s = %q, want %q", rel, got, want)
	}
}
