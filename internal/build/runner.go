package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Runner executes one task's process and reports how it ended.
type Runner interface {
	Run(ctx context.Context, args []string) (*RunResult, error)
}

// RunResult is the outcome of a process that was started. A non-zero
// ExitCode is not an error at this level.
type RunResult struct {
	ExitCode int           `json:"exit_code"`
	Stdout   []byte        `json:"stdout,omitempty"`
	Stderr   []byte        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunnerConfig configures ExecRunner.
type RunnerConfig struct {
	// Timeout bounds a single process; zero means DefaultTimeout.
	Timeout time.Duration
	// Dir is the working directory; empty inherits the caller's.
	Dir string
	// Env is appended to the inherited environment.
	Env map[string]string
}

// DefaultTimeout bounds a generator process when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// ExecRunner runs tasks as child processes.
type ExecRunner struct {
	cfg RunnerConfig
}

// NewExecRunner returns a runner using cfg.
func NewExecRunner(cfg RunnerConfig) *ExecRunner {
	return &ExecRunner{cfg: cfg}
}

// Run starts args[0] with the remaining arguments and waits for it. The
// returned error is non-nil only when the process could not be run.
func (r *ExecRunner) Run(ctx context.Context, args []string) (*RunResult, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.cfg.Dir
	cmd.WaitDelay = time.Second
	if len(r.cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range r.cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &RunResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running %s: %w", args[0], err)
	}
	return res, nil
}
