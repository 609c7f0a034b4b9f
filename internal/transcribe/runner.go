package transcribe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// defaultWaitDelay bounds how long Wait keeps reading pipes after a kill.
const defaultWaitDelay = 5 * time.Second

// commandSpec is one fully resolved engine invocation.
type commandSpec struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, spec commandSpec) (commandResult, error)
}

// execRunner executes commands via os/exec with a hard deadline.
type execRunner struct {
	waitDelay time.Duration
}

// Run launches the command and races its exit against the deadline. On
// expiry the process (group, on unix) is killed and TimedOut is set.
func (r *execRunner) Run(ctx context.Context, spec commandSpec) (commandResult, error) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcess(cmd)
	cmd.WaitDelay = r.waitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		result.ExitCode = LaunchFailedExitCode
		return result, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = TimeoutExitCode
		result.TimedOut = true
		return result, runCtx.Err()
	}

	result.ExitCode = LaunchFailedExitCode
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	return result, err
}
