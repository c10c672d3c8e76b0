package rehydrate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"postgres-rehydrate/internal/logging"
)

// RunOptions adjusts a single command invocation
type RunOptions struct {
	Dir   string
	Env   []string // appended to the inherited environment
	Stdin io.Reader
}

// RunResult captures the outcome of a command invocation
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CombinedOutput returns stdout and stderr joined for error reporting
func (r RunResult) CombinedOutput() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// CommandRunner executes external commands. The client tools psql and
// pg_dump run through this seam so tests can intercept them.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error)
}

// ExecRunner is the production CommandRunner backed by os/exec
type ExecRunner struct {
	logger *logging.Logger
}

// NewExecRunner creates a new ExecRunner instance
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command and captures its output. A non-zero exit status
// is returned as an error alongside the captured result.
func (er *ExecRunner) Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}
	cmd.Stdin = opts.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	er.logger.LogCommandExecution(name+" "+strings.Join(args, " "), duration, err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("%s exited with status %d: %w", name, result.ExitCode, err)
	}
	return result, nil
}
