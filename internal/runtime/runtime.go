package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultStopTimeout is how long the runtime may take to exit after SIGTERM
// before it is killed
const DefaultStopTimeout = 10 * time.Second

// Environment variables exported to the runtime process
const (
	EnvTargetDir       = "ASSETSYNC_TARGET_DIR"
	EnvPath            = "ASSETSYNC_PATH"
	EnvAppPath         = "ASSETSYNC_APP_PATH"
	EnvManifestVersion = "ASSETSYNC_MANIFEST_VERSION"
)

// Environment describes the synchronized asset tree handed to the runtime
type Environment struct {
	TargetDir       string
	Path            string   // bootstrap search path
	AppPath         []string // application path entries, in order
	ManifestVersion string
}

// Runtime is started once assets are synchronized
type Runtime interface {
	// Start hands env to the runtime. It blocks for as long as the runtime
	// runs.
	Start(ctx context.Context, env Environment) error
}

// Vars returns env as KEY=value pairs
func (env Environment) Vars() []string {
	return []string{
		EnvTargetDir + "=" + env.TargetDir,
		EnvPath + "=" + env.Path,
		EnvAppPath + "=" + strings.Join(env.AppPath, string(os.PathListSeparator)),
		EnvManifestVersion + "=" + env.ManifestVersion,
	}
}

// ExecClient implements Runtime by running an external command
type ExecClient struct {
	command     []string
	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewExecClient creates a client running command; command[0] is the program
func NewExecClient(command []string, logger *slog.Logger) *ExecClient {
	return &ExecClient{
		command:     command,
		stopTimeout: DefaultStopTimeout,
		logger:      logger,
	}
}

// Start runs the command with the environment variables appended to the
// current process environment and stdio inherited. Cancelling ctx sends
// SIGTERM; the process is killed if it has not exited after the stop timeout.
// A runtime that exits cleanly after SIGTERM is not an error.
func (c *ExecClient) Start(ctx context.Context, env Environment) error {
	if len(c.command) == 0 {
		return fmt.Errorf("runtime command is empty")
	}

	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	cmd.Env = append(os.Environ(), env.Vars()...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = c.stopTimeout

	c.logger.Info("starting runtime", "command", c.command[0], "path", env.Path)
	if err := cmd.Run(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Info("runtime stopped", "command", c.command[0])
			return nil
		}
		return fmt.Errorf("runtime %s failed: %w", c.command[0], err)
	}
	return nil
}

// Nop implements Runtime without starting anything
type Nop struct{}

// Start implements Runtime
func (Nop) Start(_ context.Context, _ Environment) error {
	return nil
}
