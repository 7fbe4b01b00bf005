package render

import (
	"context"
	"os/exec"
)

// Executor runs the external renderer. The seam exists so tests can
// observe invocations and fake subprocess behavior.
type Executor interface {
	// Run executes name with args in dir and returns the combined
	// stdout/stderr. A non-nil error means the process did not exit
	// zero (or could not be started, or was killed by ctx).
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CommandExecutor runs the renderer via os/exec.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
