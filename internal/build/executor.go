package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/efebarandurmaz/protoforge/internal/observability"
)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// KeepGoing runs the remaining tasks after a failure.
	KeepGoing bool
	Logger    *slog.Logger
}

// Executor runs tasks one at a time in the order given.
type Executor struct {
	runner    Runner
	keepGoing bool
	logger    *slog.Logger
}

// NewExecutor creates an executor that starts processes through r.
func NewExecutor(r Runner, cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{runner: r, keepGoing: cfg.KeepGoing, logger: logger}
}

// Run executes tasks sequentially. It stops at the first failed task
// unless KeepGoing is set, in which case every failure is returned joined.
func (e *Executor) Run(ctx context.Context, tasks []*Task) error {
	var errs []error
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := e.RunTask(ctx, t); err != nil {
			errs = append(errs, err)
			if !e.keepGoing {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// RunTask executes a single pending task and records its outcome on it.
func (e *Executor) RunTask(ctx context.Context, t *Task) error {
	if t.State != StatePending {
		return fmt.Errorf("task %s for %s is %s, not pending", t.ID, t.Input(), t.State)
	}

	ctx, span := observability.StartGenerateSpan(ctx, t.Target, t.Input().Path())
	defer span.End()

	for _, o := range t.Outputs {
		if err := os.MkdirAll(o.Dir(), 0o755); err != nil {
			t.State = StateFailed
			observability.RecordError(span, err)
			return fmt.Errorf("target %s: creating %s: %w", t.Target, o.Dir(), err)
		}
	}

	t.State = StateRunning
	e.logger.Info("generating", "target", t.Target, "input", t.Input().Path(), "task", t.ID)
	e.logger.Debug("command", "args", t.Args)

	start := time.Now()
	res, err := e.runner.Run(ctx, t.Args)
	t.Duration = time.Since(start)
	if err != nil {
		t.State = StateFailed
		t.ExitCode = -1
		gerr := &GenerationFailedError{
			Target:   t.Target,
			Input:    t.Input().Path(),
			ExitCode: -1,
			Err:      err,
		}
		if res != nil {
			t.Stderr = string(res.Stderr)
			gerr.Stderr = t.Stderr
		}
		observability.RecordError(span, gerr)
		e.logger.Error("generation failed", "target", t.Target, "input", t.Input().Path(), "error", err)
		return gerr
	}

	t.ExitCode = res.ExitCode
	t.Stderr = string(res.Stderr)
	observability.RecordGenerateResult(span, res.ExitCode, t.Duration)
	if res.ExitCode != 0 {
		t.State = StateFailed
		gerr := &GenerationFailedError{
			Target:      t.Target,
			Input:       t.Input().Path(),
			ExitCode:    res.ExitCode,
			Stderr:      t.Stderr,
			Diagnostics: ParseDiagnostics(t.Stderr),
		}
		for _, d := range gerr.Diagnostics {
			e.logger.Error("diagnostic", "target", t.Target, "file", d.File, "line", d.Line, "column", d.Column, "message", d.Message)
		}
		e.logger.Error("generation failed", "target", t.Target, "input", t.Input().Path(), "exit_code", res.ExitCode)
		return gerr
	}

	t.State = StateSucceeded
	e.logger.Debug("generated", "target", t.Target, "input", t.Input().Path(), "duration", t.Duration)
	return nil
}
