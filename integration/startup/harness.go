//go:build integration

package startup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/assetsync/internal/testutil"
)

const defaultTimeout = 5 * time.Minute

// Harness builds the assetsync binary once and runs it against a scratch
// directory laid out like an installed application
type Harness struct {
	t      *testing.T
	binary string
	root   string
}

// NewHarness creates a new test harness rooted in a temporary directory
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return &Harness{
		t:    t,
		root: t.TempDir(),
	}
}

// BuildBinary compiles cmd/assetsync into the harness directory
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.root, "bin", "assetsync")
	h.t.Logf("Building %s", h.binary)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/assetsync")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// Path returns rel resolved below the harness root
func (h *Harness) Path(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

// Run executes the binary with args
func (h *Harness) Run(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binary == "" {
		return "", "", 0, fmt.Errorf("binary not built")
	}

	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = h.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustRun executes the binary and fails the test if it returns non-zero
func (h *Harness) MustRun(ctx context.Context, args ...string) (string, string) {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Run(ctx, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout, stderr
}

// WriteFile writes content to rel below the harness root
func (h *Harness) WriteFile(rel, content string) {
	h.t.Helper()
	path := h.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write file: %v", err)
	}
}

// ReadFile reads rel below the harness root
func (h *Harness) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(h.Path(rel))
	return string(data), err
}

// FileExists checks if rel exists below the harness root
func (h *Harness) FileExists(rel string) bool {
	_, err := os.Lstat(h.Path(rel))
	return err == nil
}

// Remove deletes rel and everything below it
func (h *Harness) Remove(rel string) {
	h.t.Helper()
	if err := os.RemoveAll(h.Path(rel)); err != nil {
		h.t.Fatalf("remove %s: %v", rel, err)
	}
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
